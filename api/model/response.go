package model

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// QAResponse 问答响应
type QAResponse struct {
	Question   string          `json:"question"`             // 用户问题
	Answer     string          `json:"answer"`               // 生成的回答
	Sources    []string        `json:"sources"`              // 检索到的分块ID
	Cached     bool            `json:"cached"`               // 是否来自缓存
	Evaluation *EvaluationInfo `json:"evaluation,omitempty"` // 评估结果
}

// EvaluationInfo 回答评估信息
type EvaluationInfo struct {
	Expected string `json:"expected"`
	Passed   bool   `json:"passed"`
	Verdict  string `json:"verdict"`
}

// IngestResponse 入库响应
type IngestResponse struct {
	Reset     bool `json:"reset"`
	Documents int  `json:"documents"`
	Chunks    int  `json:"chunks"`
	Existing  int  `json:"existing"`
	Added     int  `json:"added"`
	Skipped   int  `json:"skipped"`
}

// CountResponse 分块数量响应
type CountResponse struct {
	Count int `json:"count"`
}

// DocumentInfo 输入文档信息
type DocumentInfo struct {
	ID       string `json:"id"`        // 相对于输入根目录的路径
	Name     string `json:"name"`      // 文件名
	Size     int64  `json:"size"`      // 文件大小
	MimeType string `json:"mime_type"` // MIME类型
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int            `json:"total"`
	Documents []DocumentInfo `json:"documents"`
}
