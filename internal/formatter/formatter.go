// package formatter exports crawled playlists to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat converts a flag value into a [Format]. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want json, csv, markdown or txt)", shared.ErrInvalidArgument, s)
	}
}

// Export renders bundle in format. Markdown is rendered without a cover image.
func Export(bundle *models.ResultBundle, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(bundle)
	case FormatCSV:
		return ExportToCSV(bundle)
	case FormatMarkdown:
		return ExportToMarkdown(bundle, "")
	case FormatText:
		return ExportToText(bundle)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToJSON renders the full bundle as indented JSON.
func ExportToJSON(bundle *models.ResultBundle) ([]byte, error) {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts tracks to CSV with columns: Track, Timestamp, Artist, Title, URL, Type
func ExportToCSV(bundle *models.ResultBundle) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Track", "Timestamp", "Artist", "Title", "URL", "Type"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range bundle.Tracks {
		record := []string{
			strconv.Itoa(track.TrackNumber),
			track.Timestamp,
			track.Artist,
			track.Title,
			track.ResolvedURL,
			string(track.VideoType),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a bundle to Markdown with an optional cover image
func ExportToMarkdown(bundle *models.ResultBundle, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", titleOf(bundle))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if ch := bundle.Channel; ch.Name != "" {
		fmt.Fprintf(&buf, "**Channel**: %s (%s)", ch.Name, ch.Handle)
		if ch.SubscriberCount != "" {
			fmt.Fprintf(&buf, " · %s", ch.SubscriberCount)
		}
		buf.WriteString("\n")
	}
	if bundle.SourceURL != "" {
		fmt.Fprintf(&buf, "**Source**: <%s>\n", bundle.SourceURL)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d (%d resolved)\n\n", len(bundle.Tracks), bundle.ResolvedCount())

	buf.WriteString("## Tracks\n\n")
	for _, track := range bundle.Tracks {
		name := fmt.Sprintf("%s - %s", track.Artist, track.Title)
		if track.Resolved() {
			name = fmt.Sprintf("[%s](%s)", name, track.ResolvedURL)
		}
		fmt.Fprintf(&buf, "%d. `%s` %s\n", track.TrackNumber, track.Timestamp, name)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a bundle to plain text format
func ExportToText(bundle *models.ResultBundle) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", titleOf(bundle))
	if bundle.Channel.Name != "" {
		fmt.Fprintf(&buf, "Channel: %s (%s)\n", bundle.Channel.Name, bundle.Channel.Handle)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(bundle.Tracks))

	for _, track := range bundle.Tracks {
		fmt.Fprintf(&buf, "%s %s - %s\n", track.Timestamp, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

func titleOf(bundle *models.ResultBundle) string {
	if bundle.Title == "" {
		return models.DefaultPlaylistTitle
	}
	return bundle.Title
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// BaseName derives a file name from the bundle's source address: the video ID when present, else "playlist".
func BaseName(bundle *models.ResultBundle) string {
	u, err := url.Parse(bundle.SourceURL)
	if err != nil {
		return "playlist"
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if base := filepath.Base(strings.TrimRight(u.Path, "/")); base != "." && base != "/" && base != "" {
		return base
	}
	return "playlist"
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports tracks to CSV with an accompanying metadata JSON file.
//
// Defaults to [BaseName] as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(bundle *models.ResultBundle, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = BaseName(bundle)
	}

	csvData, err := ExportToCSV(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadata := *bundle
	metadata.Tracks = nil
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// MarkdownOpts configures [WriteMarkdownExport].
type MarkdownOpts struct {
	Cover  bool         // download the bundle's thumbnail as cover.jpg
	Client *http.Client // image download client (default: 30s timeout)
	Logger *log.Logger
}

// WriteMarkdownExport exports a bundle to Markdown in a dedicated directory.
//
// Directory name defaults to [BaseName].
// Creates {dir}/README.md and, when a cover is requested and downloads, {dir}/cover.jpg.
// A failed cover download is logged and the export continues without it.
func WriteMarkdownExport(ctx context.Context, bundle *models.ResultBundle, outputDir string, opts MarkdownOpts) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = BaseName(bundle)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if opts.Cover && bundle.ThumbnailURL != "" {
		imageData, err := DownloadImage(ctx, opts.Client, bundle.ThumbnailURL)
		if err != nil {
			opts.Logger.Warn("failed to download cover image", "error", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				opts.Logger.Warn("failed to save cover image", "error", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(bundle, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a bundle to plain text format.
//
// Defaults to {BaseName}_tracks.txt as the filename.
func WriteTextExport(bundle *models.ResultBundle, path string) (string, error) {
	if path == "" {
		path = BaseName(bundle) + "_tracks.txt"
	}

	textData, err := ExportToText(bundle)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a bundle to JSON.
//
// Defaults to {BaseName}.json as the filename.
func WriteJSONExport(bundle *models.ResultBundle, path string) (string, error) {
	if path == "" {
		path = BaseName(bundle) + ".json"
	}

	data, err := ExportToJSON(bundle)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return path, nil
}
