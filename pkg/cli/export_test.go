package cli

var (
	ParseDuration  = parseDuration
	PrintPlans     = printPlans
	PrintResult    = printResult
	GetIndexConfig = getIndexConfig
)
