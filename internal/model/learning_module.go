package model

// LearningModule 一个完整的学习单元：原文、现代文、漫画脚本、分镜和练习
type LearningModule struct {
	UUIDBase
	ModuleName  string       `gorm:"size:255;not null" json:"module_name"`
	ClassicText string       `gorm:"not null" json:"classic_text"`
	ModernText  string       `json:"modern_text"`
	ComicScript string       `json:"comic_script"`
	CreatedBy   *uint        `gorm:"index" json:"created_by,omitempty"`
	Panels      []ComicPanel `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"panels,omitempty"`
	Exercises   []Exercise   `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"exercises,omitempty"`
}

func (LearningModule) TableName() string {
	return "learning_modules"
}

// ComicPanel 漫画分镜，PanelNumber 在模块内唯一并决定显示顺序
type ComicPanel struct {
	BaseModel
	ModuleID               string  `gorm:"size:36;not null;uniqueIndex:idx_panel_module_number" json:"module_id"`
	PanelNumber            int     `gorm:"not null;uniqueIndex:idx_panel_module_number" json:"panel_number"`
	Dialogue               string  `json:"dialogue"`
	Narration              string  `json:"narration"`
	VisualDescription      string  `json:"visual_description"`
	Setting                string  `gorm:"size:255" json:"setting"`
	Mood                   string  `gorm:"size:100" json:"mood"`
	Composition            string  `gorm:"size:100" json:"composition"`
	ImageBase64            string  `json:"image_data,omitempty"`
	ImageURL               string  `gorm:"size:500" json:"image_url,omitempty"`
	DialogueAudioBase64    string  `json:"dialogue_audio,omitempty"`
	NarrationAudioBase64   string  `json:"narration_audio,omitempty"`
	DialogueAudioDuration  float64 `json:"dialogue_audio_duration,omitempty"`
	NarrationAudioDuration float64 `json:"narration_audio_duration,omitempty"`
}

func (ComicPanel) TableName() string {
	return "comic_panels"
}

// HasImage 分镜是否已有图片
func (p ComicPanel) HasImage() bool {
	return p.ImageBase64 != "" || p.ImageURL != ""
}

// HasAudio 分镜是否已有任意一段语音
func (p ComicPanel) HasAudio() bool {
	return p.DialogueAudioBase64 != "" || p.NarrationAudioBase64 != ""
}
