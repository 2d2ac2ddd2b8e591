package httpcache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coreweb/engine/headers"
)

func respHeaders(pairs ...string) *headers.Store {
	h := headers.New()
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

var _ = Describe("CacheControl", func() {
	It("round-trips through parse and serialize", func() {
		cc := ParseCacheControl("max-age=120, no-cache, stale-while-revalidate=30")
		Expect(cc.NoCache).To(BeTrue())
		Expect(*cc.MaxAge).To(Equal(int64(120)))
		Expect(*cc.StaleWhileRevalidate).To(Equal(int64(30)))

		reparsed := ParseCacheControl(cc.Serialize())
		Expect(reparsed.NoCache).To(Equal(cc.NoCache))
		Expect(*reparsed.MaxAge).To(Equal(*cc.MaxAge))
		Expect(*reparsed.StaleWhileRevalidate).To(Equal(*cc.StaleWhileRevalidate))
	})
})

var _ = Describe("Fingerprint", func() {
	It("is deterministic for identical inputs", func() {
		a := Fingerprint("GET", "https://example.com/", nil, nil)
		b := Fingerprint("GET", "https://example.com/", nil, nil)
		Expect(a).To(Equal(b))
	})

	It("differs when Vary-selected headers differ", func() {
		h1 := respHeaders("Accept-Encoding", "gzip")
		h2 := respHeaders("Accept-Encoding", "br")
		a := Fingerprint("GET", "https://example.com/", h1, []string{"Accept-Encoding"})
		b := Fingerprint("GET", "https://example.com/", h2, []string{"Accept-Encoding"})
		Expect(a).NotTo(Equal(b))
	})
})

var _ = Describe("Cache Get/Put", func() {
	It("stores and retrieves a fresh entry", func() {
		c := New(DefaultConfig(), nil)
		req := headers.New()
		resp := respHeaders("Cache-Control", "max-age=60", "Content-Type", "text/plain")

		Expect(c.Put("GET", "https://example.com/a", req, resp, 200, []byte("hello"), time.Now())).To(Succeed())

		res, err := c.Get("GET", "https://example.com/a", req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Found).To(BeTrue())
		Expect(res.State).To(Equal(StateFresh))
		Expect(string(res.Entry.Body)).To(Equal("hello"))
	})

	It("never stores a no-store response", func() {
		c := New(DefaultConfig(), nil)
		req := headers.New()
		resp := respHeaders("Cache-Control", "no-store")
		Expect(c.Put("GET", "https://example.com/b", req, resp, 200, []byte("x"), time.Now())).To(Succeed())

		res, err := c.Get("GET", "https://example.com/b", req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Found).To(BeFalse())
	})

	It("compresses text bodies above the threshold and restores them byte-identical", func() {
		cfg := DefaultConfig()
		cfg.CompressMinBodySize = 8
		c := New(cfg, nil)
		req := headers.New()
		resp := respHeaders("Content-Type", "text/plain", "Cache-Control", "max-age=60")
		body := []byte(strings.Repeat("compress-me ", 50))

		Expect(c.Put("GET", "https://example.com/c", req, resp, 200, body, time.Now())).To(Succeed())
		res, err := c.Get("GET", "https://example.com/c", req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entry.Encoding.Compressed).To(BeTrue())
		Expect(res.Entry.Body).To(Equal(body))
	})

	It("round-trips through AES-GCM encryption when a master key is configured", func() {
		cfg := DefaultConfig()
		cfg.EncryptionKey = []byte("0123456789abcdef0123456789abcdef")
		c := New(cfg, nil)
		req := headers.New()
		resp := respHeaders("Cache-Control", "max-age=60")
		body := []byte("sensitive payload")

		Expect(c.Put("GET", "https://example.com/d", req, resp, 200, body, time.Now())).To(Succeed())
		res, err := c.Get("GET", "https://example.com/d", req)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entry.Encoding.Encrypted).To(BeTrue())
		Expect(res.Entry.Body).To(Equal(body))
	})

	It("selects different entries for the same URL when Vary headers differ", func() {
		c := New(DefaultConfig(), nil)
		reqGzip := respHeaders("Accept-Encoding", "gzip")
		reqBr := respHeaders("Accept-Encoding", "br")
		respVary := respHeaders("Cache-Control", "max-age=60", "Vary", "Accept-Encoding")

		Expect(c.Put("GET", "https://example.com/e", reqGzip, respVary, 200, []byte("gzip-body"), time.Now())).To(Succeed())
		Expect(c.Put("GET", "https://example.com/e", reqBr, respVary, 200, []byte("br-body"), time.Now())).To(Succeed())

		resGzip, err := c.Get("GET", "https://example.com/e", reqGzip)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(resGzip.Entry.Body)).To(Equal("gzip-body"))

		resBr, err := c.Get("GET", "https://example.com/e", reqBr)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(resBr.Entry.Body)).To(Equal("br-body"))
	})

	It("evicts the least recently used entry once MaxEntries is exceeded", func() {
		cfg := DefaultConfig()
		cfg.MaxEntries = 2
		c := New(cfg, nil)
		req := headers.New()
		resp := respHeaders("Cache-Control", "max-age=60")

		Expect(c.Put("GET", "https://example.com/1", req, resp, 200, []byte("1"), time.Now())).To(Succeed())
		Expect(c.Put("GET", "https://example.com/2", req, resp, 200, []byte("2"), time.Now())).To(Succeed())
		// touch /1 so /2 becomes the LRU victim
		_, _ = c.Get("GET", "https://example.com/1", req)
		Expect(c.Put("GET", "https://example.com/3", req, resp, 200, []byte("3"), time.Now())).To(Succeed())

		Expect(c.Len()).To(Equal(2))
		res1, _ := c.Get("GET", "https://example.com/1", req)
		Expect(res1.Found).To(BeTrue())
		res2, _ := c.Get("GET", "https://example.com/2", req)
		Expect(res2.Found).To(BeFalse())
	})
})

var _ = Describe("GetOrFetch single-flight coalescing", func() {
	It("calls the origin fetcher exactly once for concurrent misses on the same fingerprint", func() {
		c := New(DefaultConfig(), nil)
		req := headers.New()
		var calls int32

		fetch := func(ctx context.Context) (*headers.Store, int, []byte, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(20 * time.Millisecond)
			return respHeaders("Cache-Control", "max-age=60"), 200, []byte("origin"), nil
		}

		var wg sync.WaitGroup
		results := make([]Result, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := c.GetOrFetch(context.Background(), "GET", "https://example.com/coalesce", req, fetch)
				Expect(err).NotTo(HaveOccurred())
				results[i] = res
			}(i)
		}
		wg.Wait()

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
		for _, res := range results {
			Expect(string(res.Entry.Body)).To(Equal("origin"))
		}
	})
})
