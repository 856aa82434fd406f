// Package watcher maintains a long-lived, self-healing subscription to
// build pipeline events on the shared cluster. Qualifying events propagate
// a container build status to the telemetry sink and, for terminal events,
// trigger a backup commit status. Both side effects are dispatched off the
// event-delivery path and their failures are only ever logged.
package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	apiwatch "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/notifier"
)

// listenerLabel carries the owning trigger's name on a pipeline run, in
// the form <kind>-listener-<token>
const listenerLabel = "triggers.tekton.dev/eventlistener"

// pipelineRunResource is the custom resource backing one pipeline execution
var pipelineRunResource = schema.GroupVersionResource{
	Group:    "tekton.dev",
	Version:  "v1beta1",
	Resource: "pipelineruns",
}

// watchedReasons is the full event vocabulary the watcher reacts to
var watchedReasons = map[string]bool{
	"Started":                true,
	"Running":                true,
	"Succeeded":              true,
	"Failed":                 true,
	"Error":                  true,
	"TaskRunCancelled":       true,
	"TaskRunTimeout":         true,
	"TaskRunImagePullFailed": true,
}

// terminalReasons additionally trigger a backup commit status
var terminalReasons = map[string]bool{
	"Succeeded":              true,
	"Failed":                 true,
	"Error":                  true,
	"TaskRunCancelled":       true,
	"TaskRunTimeout":         true,
	"TaskRunImagePullFailed": true,
}

// StatusSink receives container build status updates
type StatusSink interface {
	PostBuildStatus(ctx context.Context, containerSlug, status string) error
}

// CommitNotifier posts backup commit statuses for terminal build outcomes
type CommitNotifier interface {
	Notify(ctx context.Context, params []notifier.Param, reason string) error
}

// Config contains watcher tuning
type Config struct {
	Namespace string
	// EstablishDelay applies when creating the subscription fails;
	// RunDelay applies when an established subscription errors out.
	// Both are deliberately fixed delays, not exponential backoff:
	// losing the event stream is worse than a redundant reconnect.
	EstablishDelay time.Duration
	RunDelay       time.Duration
}

// Watcher is the single logical event subscription for this process.
// Start and Stop are idempotent and safe to call concurrently.
type Watcher struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	sink      StatusSink
	notifier  CommitNotifier
	cfg       Config
	log       logger.Interface

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a build event watcher
func New(clientset kubernetes.Interface, dyn dynamic.Interface, sink StatusSink, commits CommitNotifier, cfg Config, log logger.Interface) *Watcher {
	if cfg.Namespace == "" {
		cfg.Namespace = "build-pipelines"
	}
	if cfg.EstablishDelay == 0 {
		cfg.EstablishDelay = 10 * time.Second
	}
	if cfg.RunDelay == 0 {
		cfg.RunDelay = 3 * time.Second
	}
	return &Watcher{
		clientset: clientset,
		dynamic:   dyn,
		sink:      sink,
		notifier:  commits,
		cfg:       cfg,
		log:       log.WithField("component", "watcher"),
	}
}

// Start begins the subscription loop. Starting while already started is a
// no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.log.Debug("Watcher already started")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.stopped = make(chan struct{})
	go w.run(ctx, w.stopped)

	w.log.WithField("namespace", w.cfg.Namespace).Info("Build event watcher started")
}

// Stop cancels the active subscription and clears internal state. Stopping
// while not started is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.cancel = nil
	w.stopped = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	w.log.Info("Build event watcher stopped")
}

// Running reports whether a subscription loop is active
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// run is the subscription loop. Each (re)connect filters out events older
// than the connect time so a reconnect never replays the backlog delivered
// before the error.
func (w *Watcher) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	for {
		since := time.Now()
		sub, err := w.clientset.CoreV1().Events(w.cfg.Namespace).Watch(ctx, metav1.ListOptions{
			FieldSelector: "involvedObject.kind=PipelineRun",
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.WithError(err).Warn("Failed to establish event subscription, retrying")
			if !sleep(ctx, w.cfg.EstablishDelay) {
				return
			}
			continue
		}

		w.consume(ctx, sub.ResultChan(), since)
		sub.Stop()

		if ctx.Err() != nil {
			return
		}
		w.log.Warn("Event subscription ended, reconnecting")
		if !sleep(ctx, w.cfg.RunDelay) {
			return
		}
	}
}

// consume drains one subscription until it closes or the context ends
func (w *Watcher) consume(ctx context.Context, events <-chan apiwatch.Event, since time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			event, isEvent := ev.Object.(*corev1.Event)
			if !isEvent {
				continue
			}
			if !watchedReasons[event.Reason] {
				continue
			}
			if eventTime(event).Before(since) {
				continue
			}
			// Dispatch without blocking event delivery; ordering between
			// two events' side effects is not guaranteed
			go w.handleEvent(ctx, event.InvolvedObject.Name, event.Reason)
		}
	}
}

// handleEvent resolves the pipeline run, attributes it to a container and
// fires the side effects. Runs without an attributable container are
// silently skipped.
func (w *Watcher) handleEvent(ctx context.Context, runName, reason string) {
	run, err := w.dynamic.Resource(pipelineRunResource).Namespace(w.cfg.Namespace).Get(ctx, runName, metav1.GetOptions{})
	if err != nil {
		w.log.WithError(err).WithField("run", runName).Warn("Failed to resolve pipeline run")
		return
	}

	slug, ok := ContainerSlug(run.GetLabels()[listenerLabel])
	if !ok {
		return
	}

	status := strings.TrimPrefix(reason, "TaskRun")
	if err := w.sink.PostBuildStatus(ctx, slug, status); err != nil {
		w.log.WithError(err).WithFields(map[string]interface{}{
			"container": slug,
			"status":    status,
		}).Warn("Failed to post build status")
	}

	if !terminalReasons[reason] {
		return
	}
	params := runParams(run.Object)
	if err := w.notifier.Notify(ctx, params, reason); err != nil {
		w.log.WithError(err).WithField("run", runName).Warn("Failed to post backup commit status")
	}
}

// ContainerSlug extracts the container identifier from a listener label of
// the form <kind>-listener-<token>. Labels with fewer than three segments
// carry no attributable container.
func ContainerSlug(label string) (string, bool) {
	parts := strings.Split(label, "-")
	if len(parts) < 3 || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// runParams extracts the pipeline run's declared name/value parameters
func runParams(obj map[string]interface{}) []notifier.Param {
	spec, ok := obj["spec"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := spec["params"].([]interface{})
	if !ok {
		return nil
	}

	params := make([]notifier.Param, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		value, _ := entry["value"].(string)
		if name == "" {
			continue
		}
		params = append(params, notifier.Param{Name: name, Value: value})
	}
	return params
}

// eventTime picks the most specific timestamp the event carries
func eventTime(event *corev1.Event) time.Time {
	if !event.LastTimestamp.IsZero() {
		return event.LastTimestamp.Time
	}
	if !event.EventTime.IsZero() {
		return event.EventTime.Time
	}
	return event.CreationTimestamp.Time
}

// sleep waits for d unless the context ends first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
