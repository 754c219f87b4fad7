package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sys/unix"

	"trawl/internal/catalog"
	"trawl/internal/checkpoint"
	"trawl/internal/config"
	"trawl/internal/logging"
)

// MinFreeBytes is the free space below which the output check warns.
const MinFreeBytes uint64 = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path is a writable directory or when
// its closest existing ancestor is, so path can be created on first use.
func CheckCreatableDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor := filepath.Dir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	res := CheckDirectoryAccess(name, ancestor)
	if res.Passed {
		res.Detail = fmt.Sprintf("%s (will be created under %s)", path, ancestor)
	}
	return res
}

// CheckFreeSpace reports the free space on the filesystem holding path and
// fails when less than minFree bytes are available to unprivileged users.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	target := path
	for {
		if _, err := os.Stat(target); err == nil {
			break
		}
		parent := filepath.Dir(target)
		if parent == target {
			break
		}
		target = parent
	}
	var st unix.Statfs_t
	if err := unix.Statfs(target, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", target, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), target)
	if free < minFree {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (below %s)", humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRedis verifies that the checkpoint Redis server answers PING.
func CheckRedis(ctx context.Context, url string) Result {
	const name = "Checkpoint Redis"

	if strings.TrimSpace(url) == "" {
		return Result{Name: name, Skipped: true, Detail: "not configured (file checkpoints)"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := checkpoint.NewRedisStore(checkCtx, checkpoint.RedisConfig{URL: url, Retries: 0}, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer store.Close()
	return Result{Name: name, Passed: true, Detail: "PONG"}
}

// CheckCatalog verifies that the configured catalog backend is usable: the
// fixture parses, or the HTTP base URL answers and accepts the token.
func CheckCatalog(ctx context.Context, cfg config.Catalog) Result {
	const name = "Catalog"

	if cfg.Backend == "fixture" {
		if _, err := catalog.LoadFixture(cfg.FixturePath); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("fixture %s", cfg.FixturePath)}
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := resty.New().SetTimeout(5 * time.Second)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	resp, err := client.R().SetContext(checkCtx).Get(base + "/")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", base, summarizeError(err))}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s rejected the token (%d)", base, code)}
	case code >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("%s unhealthy (%d)", base, code)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", base)}
	}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
