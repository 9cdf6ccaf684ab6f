package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Catbox uploads to catbox.moe (permanent storage).
type Catbox struct {
	httpClient *http.Client
	endpoint   string
}

// NewCatbox creates a catbox uploader.
func NewCatbox(hc *http.Client) *Catbox {
	return &Catbox{httpClient: hc, endpoint: "https://catbox.moe/user/api.php"}
}

func (c *Catbox) Name() string { return "catbox" }

// Upload implements Uploader. The response body is the file URL.
func (c *Catbox) Upload(ctx context.Context, data []byte) (string, error) {
	body, err := postMultipart(ctx, c.httpClient, c.endpoint,
		map[string]string{"reqtype": "fileupload"}, "fileToUpload", data)
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(body))
	if !strings.HasPrefix(u, "https://files.catbox.moe/") {
		return "", fmt.Errorf("unexpected response %q", truncate(u))
	}
	return u, nil
}

// ZeroXZero uploads to 0x0.st.
type ZeroXZero struct {
	httpClient *http.Client
	endpoint   string
}

// NewZeroXZero creates a 0x0.st uploader.
func NewZeroXZero(hc *http.Client) *ZeroXZero {
	return &ZeroXZero{httpClient: hc, endpoint: "https://0x0.st"}
}

func (z *ZeroXZero) Name() string { return "0x0.st" }

// Upload implements Uploader. Plain http links are rewritten to https.
func (z *ZeroXZero) Upload(ctx context.Context, data []byte) (string, error) {
	body, err := postMultipart(ctx, z.httpClient, z.endpoint, nil, "file", data)
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(u, "https://0x0.st/"):
		return u, nil
	case strings.HasPrefix(u, "http://0x0.st/"):
		return "https://" + strings.TrimPrefix(u, "http://"), nil
	}
	return "", fmt.Errorf("unexpected response %q", truncate(u))
}

// FileIO uploads to file.io.
type FileIO struct {
	httpClient *http.Client
	endpoint   string
}

// NewFileIO creates a file.io uploader.
func NewFileIO(hc *http.Client) *FileIO {
	return &FileIO{httpClient: hc, endpoint: "https://file.io"}
}

func (f *FileIO) Name() string { return "file.io" }

// Upload implements Uploader.
func (f *FileIO) Upload(ctx context.Context, data []byte) (string, error) {
	body, err := postMultipart(ctx, f.httpClient, f.endpoint, nil, "file", data)
	if err != nil {
		return "", err
	}
	var resp struct {
		Success bool   `json:"success"`
		Link    string `json:"link"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !resp.Success || resp.Link == "" {
		return "", fmt.Errorf("upload rejected: %q", truncate(string(body)))
	}
	return resp.Link, nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
