package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Character 从原文中提取的角色，用于保持分镜间形象一致
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// ParseCharacters 解析 {"characters":[...]} 格式的模型输出
func ParseCharacters(raw string) ([]Character, error) {
	payload := objectSpan.FindString(stripFences(raw))
	if payload == "" {
		return nil, errors.New("no JSON object in character response")
	}

	var resp struct {
		Characters []Character `json:"characters"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, err
	}

	characters := make([]Character, 0, len(resp.Characters))
	for _, c := range resp.Characters {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Role == "" {
			c.Role = "character"
		}
		c.ID = CharacterID(c.Name)
		characters = append(characters, c)
	}
	return characters, nil
}

func CharacterID(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
