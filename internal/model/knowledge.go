package model

// KnowledgeRecord 已核实的知识库问答条目，由外部知识库持有，只读
type KnowledgeRecord struct {
	ID        int64    `json:"id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Species   string   `json:"species"`
	Tags      []string `json:"tags,omitempty"`
	SourceURL string   `json:"sourceUrl,omitempty"`
}

// ComposedAnswer 一次请求生成的最终回答
type ComposedAnswer struct {
	Text               string
	UsedKnowledgeBase  bool
	KnowledgeRecordIDs []int64
	SourceURLs         []string
}

// ToResponse 转换为 HTTP 响应，切片保证序列化为 [] 而不是 null
func (a ComposedAnswer) ToResponse() ChatResponse {
	ids := a.KnowledgeRecordIDs
	if ids == nil {
		ids = []int64{}
	}
	sources := a.SourceURLs
	if sources == nil {
		sources = []string{}
	}
	return ChatResponse{
		OK:      true,
		Answer:  a.Text,
		UsedKB:  a.UsedKnowledgeBase,
		KBIDs:   ids,
		Sources: sources,
	}
}

// UploadedAsset 已上传的图片：Path 长期有效，SignedURL 只在 ExpiresInSeconds 内可用
type UploadedAsset struct {
	Path             string `json:"path"`
	SignedURL        string `json:"signedUrl"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}
