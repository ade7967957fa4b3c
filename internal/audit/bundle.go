package audit

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// zip epoch, keeps bundles byte-identical across exports
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Export zips a verified run directory to outPath. Entries are the manifest
// plus every file it lists, in name order.
func Export(runDir, outPath string) error {
	m, err := VerifyRun(runDir)
	if err != nil {
		return err
	}

	names := []string{ManifestFile}
	for _, f := range m.Files {
		names = append(names, f.Name)
	}
	sort.Strings(names)

	outputFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outputFile.Close()

	zw := zip.NewWriter(outputFile)
	for _, name := range names {
		if err := addFileToZip(zw, filepath.Join(runDir, name), name); err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return outputFile.Close()
}

func addFileToZip(zw *zip.Writer, srcPath, destName string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	header := &zip.FileHeader{
		Name:     destName,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	header.SetMode(0644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
