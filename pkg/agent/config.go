package agent

// Config points to the locations the agent works from. The HoG configuration
// file (report set) is watched for changes, but the report set itself is
// fixed for the process lifetime.
type Config struct {
	DataDir   string `json:"dataDir"`
	HogConfig string `json:"hogConfig"`
}
