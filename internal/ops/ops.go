package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kk-code-lab/btide/internal/pkgchk"
)

// ManifestExt is the file suffix of package manifests.
const ManifestExt = ".bpkg"

// Report summarizes an ops run.
type Report struct {
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	Mode              string          `json:"mode"`
	Manifests         int             `json:"manifests"`
	Complete          int             `json:"complete"`
	Incomplete        int             `json:"incomplete"`
	Errors            int             `json:"errors"`
	ErrorSample       []string        `json:"error_sample,omitempty"`
	InvalidManifests  int             `json:"invalid_manifests,omitempty"`
	OutOfBoundsChunks int             `json:"out_of_bounds_chunks,omitempty"`
	Packages          []PackageStatus `json:"packages,omitempty"`
}

// PackageStatus is the per-manifest line of a scan report.
type PackageStatus struct {
	Path       string `json:"path"`
	Ident      string `json:"ident"`
	RootHash   string `json:"root_hash"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
	Complete   bool   `json:"complete"`
	MinHashes  int    `json:"min_hashes"`
	TargetFile string `json:"target_file"`
}

// Scan loads every manifest in dir, builds its tree and reports completion.
// A manifest that fails to load or build counts as one error; the scan
// carries on with the rest.
func Scan(dir string) (*Report, error) {
	report := &Report{Mode: "scan", StartedAt: now()}
	manifests, err := listManifests(dir)
	if err != nil {
		return nil, err
	}
	report.Manifests = len(manifests)

	addError := func(err error) {
		report.Errors++
		if len(report.ErrorSample) < 5 {
			report.ErrorSample = append(report.ErrorSample, err.Error())
		}
	}

	for _, path := range manifests {
		pkg, err := pkgchk.Open(path)
		if err != nil {
			report.InvalidManifests++
			addError(err)
			continue
		}
		d := pkg.Descriptor
		for i, ch := range d.Chunks {
			if ch.Completed() && uint64(ch.Offset)+uint64(ch.Size) > uint64(d.Size) {
				report.OutOfBoundsChunks++
				addError(fmt.Errorf("%s: chunk %d out of bounds offset=%d len=%d size=%d", path, i, ch.Offset, ch.Size, d.Size))
			}
		}
		done, total := pkg.Progress()
		status := PackageStatus{
			Path:       path,
			Ident:      d.Ident,
			RootHash:   pkg.RootHash(),
			Done:       done,
			Total:      total,
			Complete:   done == total,
			MinHashes:  len(pkg.MinCompletedHashes()),
			TargetFile: d.Filename,
		}
		if status.Complete {
			report.Complete++
		} else {
			report.Incomplete++
		}
		report.Packages = append(report.Packages, status)
	}

	report.FinishedAt = now()
	return report, nil
}

func listManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ManifestExt) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}
