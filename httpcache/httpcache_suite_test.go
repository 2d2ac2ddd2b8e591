package httpcache

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestHTTPCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTPCache Suite")
}
