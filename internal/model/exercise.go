package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Exercise 模块下的一道选择题，CorrectAnswer 是 Options 的下标
type Exercise struct {
	UUIDBase
	ModuleID       string         `gorm:"size:36;not null;index" json:"module_id"`
	Type           string         `gorm:"size:50;not null;default:multiple_choice" json:"type"`
	Difficulty     string         `gorm:"size:20;default:medium" json:"difficulty"`
	Question       string         `gorm:"not null" json:"question"`
	ClassicText    string         `json:"classic_text,omitempty"`
	ModernText     string         `json:"modern_text,omitempty"`
	ComicReference string         `gorm:"size:255" json:"comic_reference,omitempty"`
	AudioText      string         `json:"audio_text,omitempty"`
	AudioType      string         `gorm:"size:50" json:"audio_type,omitempty"`
	Options        datatypes.JSON `json:"options" swaggertype:"array,string"`
	CorrectAnswer  int            `gorm:"not null" json:"correct_answer"`
	Explanation    string         `json:"explanation"`
	GrammarRule    string         `gorm:"size:255" json:"grammar_rule,omitempty"`
	Position       int            `gorm:"default:0" json:"position"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// OptionList 解码选项列表，数据损坏时返回空列表
func (e Exercise) OptionList() []string {
	var options []string
	if len(e.Options) == 0 {
		return options
	}
	if err := json.Unmarshal(e.Options, &options); err != nil {
		return nil
	}
	return options
}

func (e *Exercise) SetOptions(options []string) error {
	raw, err := json.Marshal(options)
	if err != nil {
		return err
	}
	e.Options = datatypes.JSON(raw)
	return nil
}
