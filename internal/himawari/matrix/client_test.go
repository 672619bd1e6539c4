package matrix

import (
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/chat"
)

func TestReconnectBackoffGrowsToCap(t *testing.T) {
	d := backoffMin
	for _, want := range []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second} {
		d = nextBackoff(d)
		if d != want {
			t.Fatalf("backoff = %v, want %v", d, want)
		}
	}
	for i := 0; i < 20; i++ {
		d = nextBackoff(d)
	}
	if d != backoffMax {
		t.Fatalf("backoff = %v, want cap %v", d, backoffMax)
	}
}

func TestRenderReplyPlainText(t *testing.T) {
	plain, html := renderReply(chat.Text("All set."))
	if plain != "All set." {
		t.Fatalf("plain = %q", plain)
	}
	if html != "All set." {
		t.Fatalf("html = %q", html)
	}
}

func TestRenderReplyButtonsBecomeOptionList(t *testing.T) {
	reply := chat.Reply{
		Message: "Pick a VPC:",
		Buttons: []chat.Button{
			{Text: "vpc-prod (10.0.0.0/16)", Value: "vpc-prod"},
			{Text: "vpc-dev (10.1.0.0/16)", Value: "vpc-dev"},
		},
	}
	plain, html := renderReply(reply)

	if !strings.Contains(plain, "1. vpc-prod (10.0.0.0/16)") || !strings.Contains(plain, "2. vpc-dev (10.1.0.0/16)") {
		t.Fatalf("plain missing numbered options: %q", plain)
	}
	if !strings.Contains(html, "<ol><li>vpc-prod (10.0.0.0/16)</li>") {
		t.Fatalf("html missing list: %q", html)
	}
}

func TestRenderReplyEscapesHTML(t *testing.T) {
	_, html := renderReply(chat.Text("use <t3.micro> & friends"))
	if strings.Contains(html, "<t3.micro>") {
		t.Fatalf("unescaped html: %q", html)
	}
}
