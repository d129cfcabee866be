package memory

import "errors"

// Memory errors
var (
	// ErrEmptyContent 内容为空
	ErrEmptyContent = errors.New("empty content")
	// ErrEmptyUserID 用户 ID 为空
	ErrEmptyUserID = errors.New("empty user id")
)
