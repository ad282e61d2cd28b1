// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package outputfile manages the files a task produces and consumes.
//
// Every output file gets a random UUID-derived name inside the task's output
// directory, so concurrent plugins and repeated runs never collide. The
// human-facing name travels separately as DisplayName.
package outputfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultDataType labels files with no more specific type.
const DefaultDataType = "worker:generic:file"

// ErrOutputDir is returned when the output directory is missing or not a directory.
var ErrOutputDir = errors.New("output directory unavailable")

// File describes a task input or output file.
type File struct {
	ID           int    `json:"id,omitempty"`
	UUID         string `json:"uuid,omitempty"`
	DisplayName  string `json:"display_name"`
	Extension    string `json:"extension,omitempty"`
	DataType     string `json:"data_type,omitempty"`
	Path         string `json:"path"`
	OriginalPath string `json:"original_path,omitempty"`
	SourceFileID string `json:"source_file_id,omitempty"`
}

// FromPath describes an existing file, using its base name as display name.
func FromPath(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", abs)
	}
	name := filepath.Base(abs)
	return File{
		DisplayName: name,
		Extension:   extension(name),
		Path:        abs,
	}, nil
}

// Create reserves a new, uniquely named file in dir. The extension of
// displayName carries over to the file on disk.
func Create(dir, displayName, dataType string) (*File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOutputDir, dir)
	}
	if dataType == "" {
		dataType = DefaultDataType
	}

	id := uuid.New()
	hexID := strings.ReplaceAll(id.String(), "-", "")
	ext := extension(displayName)

	filename := hexID
	if ext != "" {
		filename += "." + ext
	}
	path := filepath.Join(dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &File{
		UUID:        hexID,
		DisplayName: displayName,
		Extension:   ext,
		DataType:    dataType,
		Path:        path,
	}, nil
}

// Write replaces the file content with data.
func (f *File) Write(data []byte) error {
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.DisplayName, err)
	}
	return nil
}

// WriteString replaces the file content with s.
func (f *File) WriteString(s string) error {
	return f.Write([]byte(s))
}

// CopyFrom replaces the file content with a copy of src.
func (f *File) CopyFrom(src string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(f.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	f.OriginalPath = src
	return nil
}

// MoveFrom moves src onto the file, falling back to copy and remove when a
// rename is not possible (for example across filesystems).
func (f *File) MoveFrom(src string) error {
	if err := os.Rename(src, f.Path); err == nil {
		f.OriginalPath = src
		return nil
	}
	if err := f.CopyFrom(src); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}

func extension(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
