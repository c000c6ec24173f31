package cmd

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// imageInput passes URLs and data URIs through and turns a local file into
// a base64 data URI.
func imageInput(s string) (string, error) {
	for _, prefix := range []string{"data:", "http://", "https://"} {
		if strings.HasPrefix(s, prefix) {
			return s, nil
		}
	}

	data, err := os.ReadFile(s)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func imageInputs(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		img, err := imageInput(s)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}
