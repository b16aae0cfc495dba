package main

import (
	"strings"

	"github.com/umputun/akismet/lib/akismet"
)

const sampleAgent = "Mozilla/5.0 (...) Gecko/20051111 Firefox/1.5"

// sampleComments returns comments exercising Akismet test triggers, the "viagra-test-123"
// author always yields spam on the service side
func sampleComments() []akismet.Comment {
	link := `<a href="http://how-to-stop-viagra-cialis-spam.plantexpansion.org/">Cialis</a>`
	longSpam := "VIAGRA! LOTS OF VIAGRA! XXX SEX CIALIS IS GREAT! Viagra Canada Viagra Epi How To Stop Viagra " +
		link + " Spam Seizures And Viagra\nGeneric Viagra Viagra Discount. Guaranteed Cheapest Viagra pulmonary ..." +
		strings.Repeat(link+" ", 6)
	longSpam = strings.TrimSpace(longSpam)

	return []akismet.Comment{
		{UserIP: "0.0.0.1", UserAgent: sampleAgent, Referrer: "cialis", Permalink: "http://www.foo.com",
			Type: akismet.TypeComment, Author: "viagra-test-123", AuthorEmail: "viagra-test-123",
			AuthorURL: "viagra-test-123", Content: longSpam},
		{UserIP: "0.0.0.1", UserAgent: sampleAgent, Referrer: "cialis", Permalink: "http://www.foo.com",
			Type: akismet.TypeComment, Author: "Bernie Mac", AuthorEmail: "foo@bar.com",
			AuthorURL: "http://www.cialis.com", Content: "the XXX cialis"},
		{UserIP: "127.0.0.1", UserAgent: sampleAgent, Content: "VIAGRA! LOTS OF VIAGRA!"},
		{UserIP: "x.y.z.w", UserAgent: "XXX", Content: "VIAGRA! LOTS OF VIAGRA!"},
		{UserIP: "x.y.z.w", UserAgent: "XXX", Author: "viagra-test-123", Content: "VIAGRA! LOTS OF VIAGRA!"},
		{UserIP: "viagra-test-123", UserAgent: "viagra-test-123", Referrer: "viagra-test-123",
			Permalink: "viagra-test-123", Type: akismet.TypeComment, Author: "viagra-test-123",
			AuthorEmail: "viagra-test-123", AuthorURL: "viagra-test-123", Content: "viagra-test-123"},
		{UserIP: "127.0.0.1", Type: akismet.TypeComment, Author: "viagra-test-123", Content: "VIAGRA! LOTS OF VIAGRA!"},
		{UserIP: "127.0.0.1", Type: akismet.TypeComment, Author: "viagra-test-123", Content: "Viagara! " + longSpam},
		{UserIP: "127.0.0.1", Type: akismet.TypeTrackback, Author: "viagra-test-123", Content: "Viagara! " + longSpam},
	}
}
