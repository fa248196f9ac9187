// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copyrightLine = "// Copyright (c) 2026 Whip Helmets. All rights reserved."

/*
TestSourceHeaders verifies that every hand-written source file carries the
project's copyright line. Generated column tables are exempt.
*/
func TestSourceHeaders(t *testing.T) {
	root := filepath.Join("..", "..")
	checked := 0

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			switch entry.Name() {
			case "_examples", ".git", "schema", "data":
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		first := ""
		if scanner.Scan() {
			first = scanner.Text()
		}
		assert.Equal(t, copyrightLine, first, path)
		assert.NotContains(t, strings.ToLower(first), "yomira", path)
		checked++
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, checked, 50)
}
