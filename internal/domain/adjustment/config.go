package adjustment

// DefaultAsyncThreshold is the line count above which stock entries are
// posted by a background job.
const DefaultAsyncThreshold = 10

// Config holds adjustment posting settings.
type Config struct {
	AsyncThreshold int
	ZeroValuation  ZeroValuationPolicy
}

// DefaultConfig returns the posting defaults.
func DefaultConfig() Config {
	return Config{
		AsyncThreshold: DefaultAsyncThreshold,
		ZeroValuation:  ZeroValuationAllowWhenZero,
	}
}
