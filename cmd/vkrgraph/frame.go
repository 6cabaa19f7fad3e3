package main

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/forgeengine/vkr/rendergraph"
)

func defaultFrame() rendergraph.FrameInfo {
	return rendergraph.FrameInfo{
		WindowWidth:          1920,
		WindowHeight:         1080,
		ViewportWidth:        1920,
		ViewportHeight:       1080,
		SwapchainColorFormat: "bgra8_srgb",
		SwapchainDepthFormat: "d32_sfloat",
		ShadowMapSize:        2048,
		ShadowCascadeCount:   4,
	}
}

func decodeFrame(data []byte, frame *rendergraph.FrameInfo) error {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, frame)
}
