// Package parsers loads tabular audit exports from CSV files into the
// generic RawTable shape consumed by the schema normalizer.
//
// The parser makes no assumptions about column naming or order - header
// interpretation belongs to the normalizer. Its job is limited to robust
// file-level concerns: encoding validation, ragged rows, empty lines, and
// per-file statistics.
package parsers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang-tax-audit-service/internal/models"
	"golang-tax-audit-service/pkg/errors"
	"golang-tax-audit-service/pkg/logger"
)

// ParseConfig holds configuration for CSV parsing.
type ParseConfig struct {
	HasHeader        bool
	Delimiter        rune
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults.
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// ParseStats holds statistics about a parsing operation.
type ParseStats struct {
	TotalLines  int
	RowsParsed  int
	RowsSkipped int
}

// String returns a human-readable summary of parsing statistics.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d rows (%d skipped)",
		ps.TotalLines, ps.RowsParsed, ps.RowsSkipped)
}

// TableParser reads CSV files into RawTable values.
type TableParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewTableParser creates a new TableParser with the given configuration.
func NewTableParser(config *ParseConfig) *TableParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("table_parser")
	log.WithFields(logger.Fields{
		"has_header": config.HasHeader,
		"delimiter":  string(config.Delimiter),
	}).Debug("Created table parser")

	return &TableParser{config: config, logger: log}
}

// ParseFile reads the CSV file at path into a RawTable.
func (tp *TableParser) ParseFile(path string) (*models.RawTable, *ParseStats, error) {
	tp.logger.WithField("file_path", path).Debug("Opening CSV file")

	file, err := os.Open(path)
	if err != nil {
		tp.logger.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	if tp.config.ValidateEncoding {
		if err := tp.validateEncoding(file, path); err != nil {
			return nil, nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, path, err)
		}
	}

	return tp.Parse(file, path)
}

// Parse reads CSV content from r into a RawTable. The name parameter is
// used only in error messages.
func (tp *TableParser) Parse(r io.Reader, name string) (*models.RawTable, *ParseStats, error) {
	reader := csv.NewReader(r)
	reader.Comma = tp.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	stats := &ParseStats{}
	var headers []string
	var rows [][]string

	if tp.config.HasHeader {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, stats, errors.ValidationError(
					errors.CodeNoValidData, "file_content", "empty", nil,
				).WithSuggestion("Ensure the file contains a header and data rows")
			}
			return nil, stats, errors.ParseError(
				errors.CodeInvalidFormat, name, 1, "headers", "", err,
			).WithSuggestion("Check the file format and ensure it's a valid CSV")
		}
		stats.TotalLines++
		headers = cleanHeaders(record)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tp.logger.WithError(err).WithField("line", stats.TotalLines+1).Warn("Failed to read CSV record")
			return nil, stats, errors.ParseError(
				errors.CodeInvalidFormat, name, stats.TotalLines+1, "", "", err,
			)
		}

		stats.TotalLines++

		if tp.config.SkipEmptyRows && isEmptyRecord(record) {
			stats.RowsSkipped++
			continue
		}

		rows = append(rows, record)
		stats.RowsParsed++
	}

	if !tp.config.HasHeader && len(rows) > 0 {
		// Positional headers so the normalizer can still address columns.
		headers = make([]string, len(rows[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	tp.logger.WithFields(logger.Fields{
		"file":    name,
		"headers": headers,
		"rows":    stats.RowsParsed,
	}).Debug("Finished parsing CSV file")

	return models.NewRawTable(headers, rows), stats, nil
}

// validateEncoding checks that the file contains valid UTF-8 text.
func (tp *TableParser) validateEncoding(file *os.File, path string) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError, path, lineNum, "encoding", "",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			).WithSuggestion("Save the file in UTF-8 encoding and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	return nil
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
