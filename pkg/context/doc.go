// Package context 实现上下文工程流水线：从异构原始上下文中检索
// 类型化片段，经过冲突消解、时间衰减、聚类和 Token 预算打包，
// 最终合成面向提示词的上下文块。
//
// 流水线分五个阶段，严格顺序执行：
//
//	retrieve  → 从原始上下文提取片段并按词汇重叠度打分
//	integrate → 冲突消解、一致性校验、时间衰减、聚类、预算打包
//	generate  → 按相关性分区并渲染为核心/辅助/情感/主动四个文本块
//	highlight → 重排最相关内容到提示词末尾（利用 LLM 近因偏置）
//	transfer  → 将摘要和延续线索写入转移缓存，供下一轮对话使用
//
// 入口为 Pipeline.Process；各阶段组件也可单独使用。
package context
