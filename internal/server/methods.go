package server

// Method describes one request method and the shape of its params.
type Method struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MethodDefinitions returns every method the server answers.
func MethodDefinitions() []Method {
	return []Method{
		{
			Name:        "ping",
			Description: "Health check. Returns an empty object.",
			InputSchema: map[string]interface{}{"type": "object"},
		},
		{
			Name:        "methods",
			Description: "List the methods this server answers.",
			InputSchema: map[string]interface{}{"type": "object"},
		},
		{
			Name:        "status",
			Description: "Describe the active template: state id, version, source path, keypoint count, min_good_matches and the extractor and match policy in use.",
			InputSchema: map[string]interface{}{"type": "object"},
		},
		{
			Name:        "detect",
			Description: "Locate the template in a query image. Returns zero or one detection with confidence, class_name \"match\" and an inclusive pixel box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the query image. Decoded images are cached by path.",
					},
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64 encoded query image (PNG, JPEG, GIF, BMP or TIFF). Use instead of image_path.",
					},
					"reload": map[string]interface{}{
						"type":        "boolean",
						"description": "Re-read image_path from disk instead of using the cached copy.",
						"default":     false,
					},
					"timeout_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Abort the detection after this many milliseconds (0 = no per-call limit).",
						"minimum":     0,
					},
					"annotate": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the query image with the detection outlined, coloured red to green by confidence.",
						"default":     false,
					},
					"crop": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the matched region as a PNG.",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "do_command",
			Description: "Update the template configuration. All entries are validated, then applied together; on error nothing changes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"set": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"key": map[string]interface{}{
									"type": "string",
									"enum": []string{"source_image_path", "min_good_matches"},
								},
								"value": map[string]interface{}{
									"description": "A path for source_image_path, a positive integer for min_good_matches.",
								},
							},
							"required": []string{"key", "value"},
						},
					},
				},
			},
		},
	}
}
