package game

// ServeStatus classifies the outcome of a serve attempt. Domain outcomes are
// results, not errors: an Expired outcome has already committed the penalty
// and still reports a failure to the caller.
type ServeStatus string

const (
	ServeSuccess             ServeStatus = "success"
	ServeInvalidInput        ServeStatus = "invalid_input"
	ServeNotFound            ServeStatus = "not_found"
	ServeForbidden           ServeStatus = "forbidden"
	ServeAlreadyServed       ServeStatus = "already_served"
	ServeExpired             ServeStatus = "expired"
	ServeRecipeNotDiscovered ServeStatus = "recipe_not_discovered"
	ServeFailed              ServeStatus = "server_error"
)

// ServeResult is the synchronous response to a serve request. The ledger
// fields are only populated on success.
type ServeResult struct {
	Status       ServeStatus `json:"status"`
	Message      string      `json:"message,omitempty"`
	Satisfaction int         `json:"satisfaction,omitempty"`
	Treasury     float64     `json:"treasury,omitempty"`
	RecipeName   string      `json:"recipe_name,omitempty"`
	IsVIP        bool        `json:"is_vip,omitempty"`
	Bonus        int         `json:"bonus,omitempty"`
}

func failure(status ServeStatus, message string) ServeResult {
	return ServeResult{Status: status, Message: message}
}
