package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 生成资源的 MIME 类型
const (
	MimeImage       = "image/"
	MimeAudio       = "audio/"
	MimePNG         = "image/png"
	MimeWAV         = "audio/wav"
	MimeMP3         = "audio/mpeg"
	MimeOctetStream = "application/octet-stream"
)

// 分镜语音类型
const (
	AudioDialogue  = "dialogue"
	AudioNarration = "narration"
)

// 分页
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
