package versioncheck

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/nodeflow/pkg/types"
)

// DefaultTimeout bounds how long a single executable's version probe may
// run before it is considered a failure.
const DefaultTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`\d+(\.\d+){0,3}`)

// Result is the outcome of probing one VersionRequirement.
type Result struct {
	Requirement types.VersionRequirement
	Satisfied   bool
	Found       string
	Message     string
}

// CheckRequirements invokes every declared executable with --version and
// matches the first version-looking token in its combined output against
// the requirement's predicate. Per spec §4.5, any failure means the
// caller should abort the pipeline before any task runs.
func CheckRequirements(ctx context.Context, reqs []types.VersionRequirement) ([]Result, error) {
	results := make([]Result, 0, len(reqs))
	failed := false

	for _, req := range reqs {
		r := check(ctx, req)
		results = append(results, r)
		if !r.Satisfied {
			failed = true
		}
	}

	if failed {
		return results, fmt.Errorf("versioncheck: one or more version requirements not satisfied")
	}
	return results, nil
}

func check(ctx context.Context, req types.VersionRequirement) Result {
	cctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, req.Executable, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return Result{Requirement: req, Satisfied: false, Message: fmt.Sprintf("run %q: %v", req.Executable, err)}
	}

	found := versionPattern.FindString(out.String())
	if found == "" {
		return Result{Requirement: req, Satisfied: false, Message: "no version string found in output"}
	}

	ok, err := matchPredicate(found, req.Predicate)
	if err != nil {
		return Result{Requirement: req, Satisfied: false, Found: found, Message: err.Error()}
	}
	if !ok {
		return Result{Requirement: req, Satisfied: false, Found: found,
			Message: fmt.Sprintf("%s does not satisfy %q", found, req.Predicate)}
	}
	return Result{Requirement: req, Satisfied: true, Found: found}
}

// matchPredicate evaluates a predicate of the form "<op><version>" where
// op is one of >=, <=, ==, >, <, or no operator (meaning "==").
func matchPredicate(found, predicate string) (bool, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return true, nil
	}

	op, rhs := splitOperator(predicate)
	cmp, err := compareVersions(found, rhs)
	if err != nil {
		return false, err
	}

	switch op {
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	case "==", "":
		return cmp == 0, nil
	default:
		return false, fmt.Errorf("versioncheck: unsupported predicate operator %q", op)
	}
}

func splitOperator(predicate string) (op, rhs string) {
	for _, candidate := range []string{">=", "<=", "==", ">", "<"} {
		if strings.HasPrefix(predicate, candidate) {
			return candidate, strings.TrimSpace(predicate[len(candidate):])
		}
	}
	return "", predicate
}

// compareVersions compares dot-separated numeric version strings,
// returning -1, 0, or 1. Missing trailing components compare as zero.
func compareVersions(a, b string) (int, error) {
	as, err := splitVersion(a)
	if err != nil {
		return 0, err
	}
	bs, err := splitVersion(b)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

func splitVersion(v string) ([]int, error) {
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("versioncheck: invalid version component %q in %q", p, v)
		}
		out[i] = n
	}
	return out, nil
}
