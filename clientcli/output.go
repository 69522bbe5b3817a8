package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Formatter formats results for output.
type Formatter interface {
	FormatPut(w io.Writer, results []PutResult) error
	FormatGet(w io.Writer, result *GetResult) error
	FormatHead(w io.Writer, info *ResourceInfo) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, result *ListResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatPut formats put results as human-readable text.
func (f *HumanFormatter) FormatPut(w io.Writer, results []PutResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if f.Quiet {
			continue
		}
		verb := "Updated"
		if r.Created {
			verb = "Created"
		}
		target := r.RemotePath
		if r.ContentLocation != "" {
			target = strings.TrimPrefix(r.ContentLocation, "/")
		}
		_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", verb, target, humanize.IBytes(uint64(max(r.Size, 0))))
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
	}
	return nil
}

// FormatGet formats a get result as human-readable text.
func (f *HumanFormatter) FormatGet(w io.Writer, result *GetResult) error {
	if f.Quiet {
		return nil
	}
	size := humanize.IBytes(uint64(max(result.Size, 0)))
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Fetched: %s (%s)\n", result.ContentLocation, size)
	} else {
		_, _ = fmt.Fprintf(w, "Fetched: %s -> %s (%s)\n", result.ContentLocation, result.LocalPath, size)
	}
	_, _ = fmt.Fprintf(w, "  Content-Type: %s\n", result.ContentType)
	_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	return nil
}

// FormatHead formats resource metadata as human-readable text.
func (f *HumanFormatter) FormatHead(w io.Writer, info *ResourceInfo) error {
	_, _ = fmt.Fprintf(w, "Location:      %s\n", info.ContentLocation)
	_, _ = fmt.Fprintf(w, "Content-Type:  %s\n", info.ContentType)
	_, _ = fmt.Fprintf(w, "Size:          %s\n", humanize.IBytes(uint64(max(info.Size, 0))))
	_, _ = fmt.Fprintf(w, "ETag:          %s\n", info.ETag)
	if !info.LastModified.IsZero() {
		_, _ = fmt.Fprintf(w, "Last-Modified: %s (%s)\n",
			info.LastModified.Local().Format(time.DateTime), humanize.Time(info.LastModified))
	}
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Path, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s\n", r.Path)
		}
	}
	return nil
}

// FormatList formats list results as human-readable text.
func (f *HumanFormatter) FormatList(w io.Writer, result *ListResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No records found")
		return nil
	}

	maxPathLen := 4 // "PATH"
	maxTypeLen := 4 // "TYPE"
	for i := range result.Items {
		maxPathLen = max(maxPathLen, len(result.Items[i].Path()))
		maxTypeLen = max(maxTypeLen, len(result.Items[i].MediaType))
	}
	maxPathLen = min(maxPathLen, 60)
	maxTypeLen = min(maxTypeLen, 30)

	_, _ = fmt.Fprintf(w, "%-*s  %-*s  %10s  %s\n", maxPathLen, "PATH", maxTypeLen, "TYPE", "SIZE", "MODIFIED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("-", maxPathLen), strings.Repeat("-", maxTypeLen), strings.Repeat("-", 10), strings.Repeat("-", 19))

	for i := range result.Items {
		item := &result.Items[i]
		_, _ = fmt.Fprintf(w, "%-*s  %-*s  %10s  %s\n",
			maxPathLen, truncate(item.Path(), maxPathLen),
			maxTypeLen, truncate(item.MediaType, maxTypeLen),
			humanize.IBytes(uint64(max(item.Size, 0))),
			item.ModTime.Local().Format(time.DateTime),
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d record(s) (%s total)\n", len(result.Items), humanize.IBytes(uint64(max(result.TotalSize(), 0))))

	if result.NextCursor != "" {
		_, _ = fmt.Fprintf(w, "Next page: use --cursor %q\n", result.NextCursor)
	}

	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxEndpointLen = max(maxEndpointLen, len(profiles[i].Endpoint))
	}
	maxNameLen = min(maxNameLen, 20)
	maxEndpointLen = min(maxEndpointLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "ACCEPT")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		accept := p.Accept
		if accept == "" {
			accept = "(any)"
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n",
			marker,
			maxNameLen, truncate(p.Name, maxNameLen),
			maxEndpointLen, truncate(p.Endpoint, maxEndpointLen),
			accept,
		)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	if profile.Accept != "" {
		_, _ = fmt.Fprintf(w, "Accept:   %s\n", profile.Accept)
	}
	protocol := "HTTP/2"
	if profile.HTTP1 {
		protocol = "HTTP/1.1 or HTTP/2"
	}
	_, _ = fmt.Fprintf(w, "Protocol: %s\n", protocol)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatPut formats put results as JSON.
func (f *JSONFormatter) FormatPut(w io.Writer, results []PutResult) error {
	type jsonResult struct {
		LocalPath       string `json:"local_path"`
		RemotePath      string `json:"remote_path"`
		ContentLocation string `json:"content_location,omitempty"`
		ETag            string `json:"etag,omitempty"`
		Size            int64  `json:"size_bytes,omitempty"`
		Created         bool   `json:"created,omitempty"`
		Error           string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath:  r.LocalPath,
			RemotePath: r.RemotePath,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.ContentLocation = r.ContentLocation
			jr.ETag = r.ETag
			jr.Size = r.Size
			jr.Created = r.Created
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatGet formats a get result as JSON.
func (f *JSONFormatter) FormatGet(w io.Writer, result *GetResult) error {
	return writeJSON(w, result)
}

// FormatHead formats resource metadata as JSON.
func (f *JSONFormatter) FormatHead(w io.Writer, info *ResourceInfo) error {
	return writeJSON(w, info)
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		Path    string `json:"path"`
		Deleted bool   `json:"deleted"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{
			Path:    r.Path,
			Deleted: r.Deleted,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

// FormatList formats list results as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, result *ListResult) error {
	return writeJSON(w, result)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	output := struct {
		Profiles []Profile `json:"profiles"`
	}{
		Profiles: make([]Profile, len(profiles)),
	}

	for i := range profiles {
		p := profiles[i]
		p.Default = p.Name == defaultName
		output.Profiles[i] = p
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	profile.Default = isDefault
	return writeJSON(w, profile)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
