package metrics

import "github.com/docker/go-metrics"

const (
	// NamespacePrefix is the namespace of prometheus metrics
	NamespacePrefix = "webhdfs"
)

var (
	// ClientNamespace is the prometheus namespace of request execution
	ClientNamespace = metrics.NewNamespace(NamespacePrefix, "client", nil)

	// AuthNamespace is the prometheus namespace of token acquisition
	AuthNamespace = metrics.NewNamespace(NamespacePrefix, "auth", nil)
)

var (
	// Requests counts physical round trips by method and phase ("single",
	// "initiate" or "redirect").
	Requests = ClientNamespace.NewLabeledCounter("requests", "The number of physical HTTP round trips", "method", "phase")

	// RequestDuration measures physical round trip latency by phase.
	RequestDuration = ClientNamespace.NewLabeledTimer("request_duration", "The latency of physical HTTP round trips", "phase")

	// Failures counts connection and transfer failures by kind.
	Failures = ClientNamespace.NewLabeledCounter("failures", "The number of connection and transfer failures", "kind")

	// TransferredBytes counts bytes streamed to or from redirect targets.
	TransferredBytes = ClientNamespace.NewLabeledCounter("transferred_bytes", "The number of bytes streamed through redirect targets", "direction")

	// Refreshes counts token refresh round trips.
	Refreshes = AuthNamespace.NewCounter("refreshes", "The number of token refresh round trips")

	// ProbeFailures counts refreshes whose probe failed and were absorbed.
	ProbeFailures = AuthNamespace.NewCounter("probe_failures", "The number of token refreshes that failed and were absorbed")
)

func init() {
	metrics.Register(ClientNamespace)
	metrics.Register(AuthNamespace)
}
