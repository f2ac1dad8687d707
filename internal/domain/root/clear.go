package root

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/GriffinCanCode/plugstore/internal/domain/queue"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// ClearAll wipes every salt and every persisted record. The returned
// channel receives exactly one value (nil on success) once the storage
// directory is gone. Every persistent NodeID issued before the wipe becomes
// unknown, so the next lookup for the same pair yields a new id. Attached
// nodes keep working until released; their old data reads as not found.
func (r *Root) ClearAll() <-chan error {
	done := make(chan error, 1)

	if err := r.checkOpen(); err != nil {
		done <- err
		return done
	}

	_, err := r.queue.Submit(func() error {
		done <- r.clearAll()
		return nil
	})
	if err != nil {
		done <- err
	}
	return done
}

func (r *Root) clearAll() (err error) {
	_, span := r.tracer.StartSpan(context.Background(), "root.ClearAll")
	defer func() { tracing.Finish(span, err) }()

	before, usageErr := r.diskUsage(context.Background())
	if usageErr != nil {
		r.logger.Debug("could not measure usage before clear", zap.Error(usageErr))
	}

	if err := r.breaker.Run(func() error { return os.RemoveAll(r.layout.Root) }); err != nil {
		return types.IOError("clear storage", r.layout.Root, err)
	}
	r.salts.Reset()

	r.mu.Lock()
	r.epoch++
	invalidated, kept := 0, 0
	for id, info := range r.known {
		if info.mode != types.ModePersistent {
			continue
		}
		if info.attached {
			info.stale = true
			kept++
			continue
		}
		delete(r.known, id)
		invalidated++
	}
	epoch := r.epoch
	r.mu.Unlock()

	r.metrics.IncStorageClears()
	r.logger.Info("storage cleared",
		zap.Uint64("epoch", epoch),
		zap.Int64("reclaimed_bytes", before.Bytes),
		zap.Int("invalidated_nodes", invalidated),
		zap.Int("attached_nodes", kept),
	)
	return nil
}

// ForgetSite removes the salt and records of every origin pair whose origin
// or top-level origin matches pattern. Patterns are doublestar globs
// matched against the full origin and against its host, so "*.example.com"
// matches "https://media.example.com". It returns the number of pairs
// removed.
func (r *Root) ForgetSite(ctx context.Context, pattern string) (count int, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "root.ForgetSite", attribute.String("pattern", pattern))
	defer func() { tracing.Finish(span, err) }()

	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("%w: bad site pattern %q", types.ErrInvalidOrigin, pattern)
	}
	if err := r.checkOpen(); err != nil {
		return 0, err
	}

	return queue.Do(ctx, r.queue, func() (int, error) {
		entries, err := r.salts.List()
		if err != nil {
			return 0, err
		}

		removed := 0
		for _, e := range entries {
			if !matchOrigin(pattern, e.Origin) && !matchOrigin(pattern, e.TopLevelOrigin) {
				continue
			}

			id, err := r.deriver.Derive(e.Origin, e.TopLevelOrigin, types.ModePersistent, e.Salt)
			if err != nil {
				r.logger.Warn("skipping undecodable salt", zap.String("origin", e.Origin), zap.Error(err))
				continue
			}

			r.mu.Lock()
			info, known := r.known[id]
			attached := known && info.attached
			if attached {
				info.stale = true
			} else {
				delete(r.known, id)
			}
			r.mu.Unlock()

			if !attached {
				if err := r.disk.ClearNode(id); err != nil {
					return removed, err
				}
			}
			if err := r.salts.Remove(e.Origin, e.TopLevelOrigin); err != nil {
				return removed, err
			}
			removed++
		}

		r.metrics.AddSitesForgotten(removed)
		r.logger.Info("site forgotten", zap.String("pattern", pattern), zap.Int("pairs", removed))
		return removed, nil
	})
}

func matchOrigin(pattern, origin string) bool {
	if ok, _ := doublestar.Match(pattern, origin); ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if ok, _ := doublestar.Match(pattern, host); ok {
		return true
	}

	// match internationalized hosts in either form
	alt, err := idna.Lookup.ToASCII(host)
	if err != nil || alt == host {
		if alt, err = idna.Lookup.ToUnicode(host); err != nil || alt == host {
			return false
		}
	}
	ok, _ := doublestar.Match(pattern, alt)
	return ok
}
