package utils

import "net/http"

// Doer 接口，http.Client 和测试替身都满足
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}
