package plant

import "time"

// timeNow is swapped in tests.
var timeNow = func() time.Time { return time.Now().UTC() }
