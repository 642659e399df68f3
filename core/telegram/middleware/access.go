package middleware

// IsOperator reports whether userID is the configured operator.
// A zero operator id disables operator access entirely.
func IsOperator(operatorID, userID int64) bool {
	return operatorID != 0 && userID == operatorID
}
