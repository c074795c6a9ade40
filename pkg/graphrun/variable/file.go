package variable

import (
	"encoding/json"
	"fmt"
)

// FileType classifies a file reference.
type FileType string

// File types.
const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
	FileTypeAudio    FileType = "audio"
	FileTypeVideo    FileType = "video"
	FileTypeCustom   FileType = "custom"
)

// TransferMethod describes where the file bytes live.
type TransferMethod string

// Transfer methods.
const (
	TransferRemoteURL TransferMethod = "remote_url"
	TransferLocalFile TransferMethod = "local_file"
	TransferToolFile  TransferMethod = "tool_file"
)

// File references a file held in external storage. The engine never
// reads file contents.
type File struct {
	ID             string         `json:"id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
	Type           FileType       `json:"type"`
	TransferMethod TransferMethod `json:"transfer_method"`
	RemoteURL      string         `json:"remote_url,omitempty"`
	RelatedID      string         `json:"related_id,omitempty"`
	Filename       string         `json:"filename,omitempty"`
	Extension      string         `json:"extension,omitempty"`
	MimeType       string         `json:"mime_type,omitempty"`
	Size           int64          `json:"size"`
}

// Attribute returns a named file attribute for selector traversal.
func (f File) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return f.ID, true
	case "type":
		return string(f.Type), true
	case "transfer_method":
		return string(f.TransferMethod), true
	case "url", "remote_url":
		return f.RemoteURL, true
	case "related_id":
		return f.RelatedID, true
	case "name", "filename":
		return f.Filename, true
	case "extension":
		return f.Extension, true
	case "mime_type":
		return f.MimeType, true
	case "size":
		return f.Size, true
	}
	return nil, false
}

// Text returns the display name of the file.
func (f File) Text() string {
	if f.Filename != "" {
		return f.Filename
	}
	return f.RemoteURL
}

// Markdown renders the file as a markdown link, or an image for image files.
func (f File) Markdown() string {
	link := fmt.Sprintf("[%s](%s)", f.Text(), f.RemoteURL)
	if f.Type == FileTypeImage {
		return "!" + link
	}
	return link
}

func (f File) toMap() map[string]any {
	out := map[string]any{
		"type":            string(f.Type),
		"transfer_method": string(f.TransferMethod),
		"size":            f.Size,
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("id", f.ID)
	set("tenant_id", f.TenantID)
	set("remote_url", f.RemoteURL)
	set("related_id", f.RelatedID)
	set("filename", f.Filename)
	set("extension", f.Extension)
	set("mime_type", f.MimeType)
	return out
}

func fileFromMap(m map[string]any) (File, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return File{}, fmt.Errorf("%w: file: %v", ErrTypeMismatch, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("%w: file: %v", ErrTypeMismatch, err)
	}
	return f, nil
}
