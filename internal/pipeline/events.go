package pipeline

// Event 批处理过程中对外发布的事件
type Event interface {
	event()
}

// Progress 处理进度事件
type Progress struct {
	CurrentFile    int    // 当前文件序号，从1开始
	TotalFiles     int    // 文件总数
	CurrentSection int    // 当前片段序号，从1开始
	TotalSections  int    // 当前文件的片段总数
	Message        string // 进度描述
}

// FileDone 单个文件处理完成事件
type FileDone struct {
	SourcePath string // 源文件路径
	OutputPath string // 输出CSV路径
	CardCount  int    // 写入的卡片数量
}

// Finished 整个批次结束事件
type Finished struct {
	Success   bool   // 是否成功完成
	Message   string // 结束描述
	Succeeded int    // 成功文件数
	Failed    int    // 失败文件数
	Total     int    // 文件总数
}

// LogLine 自由文本日志事件
type LogLine struct {
	Text string
}

func (Progress) event() {}
func (FileDone) event() {}
func (Finished) event() {}
func (LogLine) event()  {}
