// Package parser classifies source files before they are sent for fixing
package parser

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// Language names returned when go-enry has no better answer
const (
	LanguageText    = "Text"
	LanguageBinary  = "Binary"
	LanguageUnknown = "Unknown"
)

// Reasons a file is excluded from fixing
const (
	SkipVendored  = "vendored"
	SkipGenerated = "generated"
	SkipBinary    = "binary"
)

// sampleSize bounds the bytes go-enry inspects for content heuristics
const sampleSize = 8 * 1024

// vendorDirs are matched before go-enry's own vendor rules
var vendorDirs = []string{
	"vendor/",
	"node_modules/",
	"third_party/",
}

// Detector determines the language of a file and whether it should be left alone
type Detector struct {
	logger *loggy.Logger
}

// NewDetector creates a new language detector
func NewDetector(logger *loggy.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Language returns the go-enry language name for a repo-relative path and its contents
func (d *Detector) Language(filePath string, data []byte) string {
	fileName := filepath.Base(filePath)
	sample := sampleOf(data)

	if enry.IsBinary(sample) {
		return LanguageBinary
	}

	language := enry.GetLanguage(fileName, sample)
	if language != "" {
		return language
	}

	// Fallback to extension-based detection if content detection isn't safe
	if language, _ = enry.GetLanguageByExtension(fileName); language != "" {
		d.logger.Debug("Fallback to extension detection", "path", filePath, "detected", language)
		return language
	}

	if language, _ = enry.GetLanguageByFilename(fileName); language != "" {
		return language
	}

	if strings.HasSuffix(fileName, ".txt") {
		return LanguageText
	}

	d.logger.Debug("No language detected", "path", filePath)
	return LanguageUnknown
}

// SkipReason returns why a file must not be rewritten, or "" when it may be
func (d *Detector) SkipReason(filePath string, data []byte) string {
	slashPath := path.Clean(filepath.ToSlash(filePath))

	if d.IsVendorFile(slashPath) {
		return SkipVendored
	}

	sample := sampleOf(data)
	if enry.IsBinary(sample) {
		return SkipBinary
	}

	if enry.IsGenerated(slashPath, data) {
		return SkipGenerated
	}

	return ""
}

// IsVendorFile checks if the file belongs to vendored third-party code
func (d *Detector) IsVendorFile(slashPath string) bool {
	for _, dir := range vendorDirs {
		if strings.HasPrefix(slashPath, dir) || strings.Contains(slashPath, "/"+dir) {
			return true
		}
	}

	// Use enry's vendor detection
	return enry.IsVendor(slashPath)
}

func sampleOf(data []byte) []byte {
	if len(data) > sampleSize {
		return data[:sampleSize]
	}
	return data
}
