package hierarchy

// QueueKind is the tc kind of a queue
type QueueKind string

const (
	KindCake    QueueKind = "cake"
	KindFQCodel QueueKind = "fq_codel"
	KindGRED    QueueKind = "gred"
	KindNetem   QueueKind = "netem"
	KindPFIFO   QueueKind = "pfifo"
	KindPrio    QueueKind = "prio"
	KindRED     QueueKind = "red"
	KindSFQ     QueueKind = "sfq"
	KindTBF     QueueKind = "tbf"
)

// Queue is a classless queue, either the root of a classless policy or the leaf of a class
type Queue interface {
	// Kind returns the tc kind of the queue
	Kind() QueueKind
}

// SFQ is a stochastic fairness queue
type SFQ struct {
	// Perturb is the hash perturbation period in seconds
	Perturb *uint32
	Limit   *uint32
}

// FQCodel is a fair queue controlled delay queue. Times are in microseconds.
type FQCodel struct {
	Quantum  *uint32
	Flows    *uint32
	Interval *uint32
	Target   *uint32
	Limit    *uint32
}

// PFIFO is a packet limited fifo
type PFIFO struct {
	Limit *uint32
}

// Prio is a three band priority queue with the kernel default priomap
type Prio struct{}

// RED holds random early detection parameters in kernel units
type RED struct {
	// Limit, Min, Max and AvPkt are in bytes
	Limit uint32
	Min   uint32
	Max   uint32
	AvPkt uint32
	// Burst is in packets
	Burst       uint32
	Probability float64
	// Bandwidth in bits/s, 0 when unknown
	Bandwidth uint64
}

// Cake is a common applications kept enhanced queue
type Cake struct {
	// Bandwidth in bits/s
	Bandwidth uint64
	// RTT in microseconds
	RTT      uint32
	FlowMode string
	NAT      bool
}

// Netem is a network emulator queue. Probabilities are percentages.
type Netem struct {
	// Rate in bits/s, 0 for unlimited
	Rate uint64
	// Delay in microseconds
	Delay      *uint32
	Corrupt    *float64
	Duplicate  *float64
	Loss       *float64
	Reorder    *float64
	Limit      *uint32
}

// TBF is a token bucket filter
type TBF struct {
	// Rate in bits/s
	Rate  uint64
	Burst uint32
	// Latency in microseconds
	Latency uint32
}

// GRED is a generalized RED queue with one virtual queue per IP precedence
type GRED struct {
	// DPs holds the virtual queues, DPs[0] is the default one
	DPs [VirtualQueues]RED
}

// VirtualQueues is the number of GRED virtual queues
const VirtualQueues = 8

func (*SFQ) Kind() QueueKind     { return KindSFQ }
func (*FQCodel) Kind() QueueKind { return KindFQCodel }
func (*PFIFO) Kind() QueueKind   { return KindPFIFO }
func (*Prio) Kind() QueueKind    { return KindPrio }
func (*RED) Kind() QueueKind     { return KindRED }
func (*Cake) Kind() QueueKind    { return KindCake }
func (*Netem) Kind() QueueKind   { return KindNetem }
func (*TBF) Kind() QueueKind     { return KindTBF }
func (*GRED) Kind() QueueKind    { return KindGRED }
