package ports

// PipelineMetrics receives pipeline counters. Implementations must be safe for
// concurrent use.
type PipelineMetrics interface {
	RowsImported(valid int, erroneous int)
	RenaperOutcome(outcome string)
	SintysOutcome(resultado string)
	ExpedienteTransition(from string, to string)
	CupoDecision(estado string)
	WorkProcessed(kind string, status string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RowsImported(int, int)               {}
func (NopMetrics) RenaperOutcome(string)               {}
func (NopMetrics) SintysOutcome(string)                {}
func (NopMetrics) ExpedienteTransition(string, string) {}
func (NopMetrics) CupoDecision(string)                 {}
func (NopMetrics) WorkProcessed(string, string)        {}
