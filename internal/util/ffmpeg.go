package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// AudioInfo 音频元数据
type AudioInfo struct {
	Duration   float64 `json:"duration"` // 时长（秒）
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
}

// ProbeAudio 将音频写入临时文件后用 ffprobe 读取元数据
func ProbeAudio(data []byte) (*AudioInfo, error) {
	tmp, err := os.CreateTemp("", "tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("写入临时文件失败: %v", err)
	}
	tmp.Close()

	jsonOutput, err := ffmpeg.Probe(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("获取音频信息失败: %v", err)
	}
	return parseProbe(jsonOutput)
}

func parseProbe(jsonOutput string) (*AudioInfo, error) {
	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Format   string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("解析音频信息失败: %v", err)
	}

	info := &AudioInfo{Format: result.Format.Format}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, stream := range result.Streams {
		if stream.CodecType == "audio" {
			info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			break
		}
	}
	return info, nil
}
