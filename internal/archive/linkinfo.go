// Package archive classifies exam-board download links and maps them to
// their location in the local data directory.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iteehub/itee_hub/internal/logctx"
)

// Content types derived from a link.
const (
	TypeQuestion = "question"
	TypeResult   = "result"
)

// LinkInfo holds what could be derived from a download link. Fields that
// could not be determined stay empty; consumers treat them as unknown, not
// as errors.
type LinkInfo struct {
	Link    string
	Type    string
	Level   string
	Country string
	Year    string
}

var (
	yearRunPattern   = regexp.MustCompile(`(\d{2})?(\d{4})`)
	yearTokenPattern = regexp.MustCompile(`(?i)(\d{4}|(?:(IP|FE|AP)\d{4}))`)

	// Exam codes are matched case-sensitively: lowercase path segments like
	// "japan" or ".zip" must not classify a link.
	questionLevelPattern = regexp.MustCompile(`pastexamqa/([^/]+)/`)
	examCodePattern      = regexp.MustCompile(`(IP|FE|AP)`)
	countryPattern       = regexp.MustCompile(`all-passers-information/([^/]+)/`)
)

// ExtractYear extracts a four digit year from the given text. It handles
// formats like "2024 April Exam", "2019S_FE.pdf" and "IPApril2012.zip".
// The fallback tier may return an exam-code token such as "IP2012" instead
// of a bare year; callers must tolerate both shapes. Returns "" when no
// candidate is found.
func ExtractYear(text string) string {
	for _, match := range yearRunPattern.FindAllStringSubmatch(text, -1) {
		for _, group := range match[1:] {
			if len(group) == 4 {
				return group
			}
		}
	}

	if match := yearTokenPattern.FindStringSubmatch(text); match != nil {
		return match[1]
	}

	return ""
}

// Classify derives content type, exam level, country and year from a
// download link. Missing fields are logged as warnings and left empty.
func Classify(ctx context.Context, link string) LinkInfo {
	logger := logctx.LoggerFromContext(ctx)

	info := LinkInfo{Link: link}

	if match := questionLevelPattern.FindStringSubmatch(link); match != nil {
		info.Type = TypeQuestion
		info.Level = strings.ToLower(match[1])
	} else if match := examCodePattern.FindStringSubmatch(link); match != nil {
		info.Type = TypeResult
		info.Level = strings.ToLower(match[1])
	} else {
		logger.Warn("unable to find content type", "link", link)
	}

	if match := countryPattern.FindStringSubmatch(link); match != nil {
		info.Country = match[1]
	} else if !strings.Contains(link, "pastexamqa") {
		logger.Warn("unable to find country", "link", link)
	}

	if year := ExtractYear(link); year != "" {
		info.Year = year
	} else {
		logger.Warn("unable to find year", "link", link)
	}

	return info
}

// LocalPath resolves where the file behind info lives in the data directory:
// <year>/results/<country>_<file> for results, <year>/questions/<file> for
// questions. It is a lookup, not a constructor: an error is returned when
// the path does not exist on disk.
func LocalPath(ctx context.Context, info LinkInfo, dataDir string) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	u, err := url.Parse(info.Link)
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", info.Link, err)
	}

	fileName := path.Base(u.Path)

	var rel string

	switch info.Type {
	case TypeResult:
		rel = filepath.Join(info.Year, "results", info.Country+"_"+fileName)
	case TypeQuestion:
		rel = filepath.Join(info.Year, "questions", fileName)
	default:
		return "", fmt.Errorf("invalid content type %q for link %q", info.Type, info.Link)
	}

	localPath := filepath.Join(dataDir, rel)
	if _, err := os.Stat(localPath); err != nil {
		logger.Info("unable to get file path", "link", info.Link, "path", localPath)

		return "", fmt.Errorf("no local file for %q: %w", info.Link, err)
	}

	return localPath, nil
}
