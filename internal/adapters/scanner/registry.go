package scanner

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// SupportedExtensions lists the extension families the registry accepts.
var SupportedExtensions = []string{".nessus", ".xml", ".json", ".sarif"}

// xmlSniffLimit bounds how much of an XML file the detector reads.
const xmlSniffLimit = 500

// Detect resolves a file to the parser that should read it, using the
// extension first and content sniffing for the ambiguous ones (.json, .xml).
// Sniffing failures degrade to the documented default parser rather than
// aborting: the chosen parser raises the structural error itself when the
// content is truly invalid.
func Detect(path string) (ports.ScanParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nessus":
		return &NessusParser{}, nil
	case ".sarif":
		return &TrivyParser{}, nil
	case ".json":
		return sniffJSON(path), nil
	case ".xml":
		return sniffXML(path), nil
	}

	// Last resort before rejecting: the filename itself may name the scanner.
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "trivy"):
		return &TrivyParser{}, nil
	case strings.Contains(name, "snyk"):
		return &SnykParser{}, nil
	case strings.Contains(name, "dependency"), strings.Contains(name, "owasp"):
		return &DependencyCheckParser{}, nil
	}

	return nil, fmt.Errorf("%w: %q (supported: %s)",
		domain.ErrUnsupportedFormat, filepath.Ext(path), strings.Join(SupportedExtensions, ", "))
}

// sniffJSON decides between Trivy, Snyk and Dependency-Check by structural
// markers. Undetectable JSON falls back to Snyk; that fallback can misparse
// unrecognized scanner output, so it is logged.
func sniffJSON(path string) ports.ScanParser {
	data, err := os.ReadFile(path)
	if err != nil {
		return &SnykParser{}
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return &SnykParser{}
	}

	switch v := root.(type) {
	case map[string]any:
		if _, ok := v["Results"]; ok {
			return &TrivyParser{}
		}
		if _, ok := v["vulnerabilities"]; ok {
			if _, hasProject := v["projectName"]; hasProject {
				return &SnykParser{}
			}
			if _, hasTarget := v["displayTargetFile"]; hasTarget {
				return &SnykParser{}
			}
		}
		if _, ok := v["dependencies"]; ok {
			return &DependencyCheckParser{}
		}
	case []any:
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := entry["ArtifactName"]; ok {
				return &TrivyParser{}
			}
			if _, ok := entry["Vulnerabilities"]; ok {
				return &TrivyParser{}
			}
		}
	}

	log.Printf("[SCANNER] No structural markers in %s, defaulting to snyk parser", filepath.Base(path))
	return &SnykParser{}
}

// sniffXML reads a bounded prefix and picks Dependency-Check when it
// mentions dependencies, defaulting to Nessus otherwise.
func sniffXML(path string) ports.ScanParser {
	f, err := os.Open(path)
	if err != nil {
		return &NessusParser{}
	}
	defer f.Close()

	prefix := make([]byte, xmlSniffLimit)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return &NessusParser{}
	}

	head := strings.ToLower(string(prefix[:n]))
	if strings.Contains(head, "dependencies") || strings.Contains(head, "dependency") {
		return &DependencyCheckParser{}
	}
	return &NessusParser{}
}
