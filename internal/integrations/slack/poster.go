// Package slack delivers digests to the report channel.
package slack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/slack-go/slack"
)

// API is the subset of *slack.Client the poster needs.
type API interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2(params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

type Poster struct {
	api     API
	channel string
}

// NewPoster returns nil when either the token or the channel is missing.
// A nil *Poster is safe to use and does nothing.
func NewPoster(token, channel string) *Poster {
	if token == "" || channel == "" {
		return nil
	}
	return NewPosterWithAPI(slack.New(token), channel)
}

func NewPosterWithAPI(api API, channel string) *Poster {
	return &Poster{api: api, channel: channel}
}

func (p *Poster) Enabled() bool {
	return p != nil && p.api != nil && p.channel != ""
}

// PostDigest sends text to the report channel and returns the message timestamp.
func (p *Poster) PostDigest(text string) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	_, ts, err := p.api.PostMessage(p.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return "", fmt.Errorf("post digest: %w", err)
	}
	log.WithField("channel", p.channel).Info("slack digest posted")
	return ts, nil
}

// UploadReport attaches the rendered report file to the channel.
func (p *Poster) UploadReport(path, title, comment string) error {
	if !p.Enabled() {
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat report file: %w", err)
	}
	if fi.Size() <= 0 {
		return fmt.Errorf("report file is empty: %s", path)
	}
	_, err = p.api.UploadFileV2(slack.UploadFileV2Parameters{
		File:           path,
		FileSize:       int(fi.Size()),
		Filename:       filepath.Base(path),
		Channel:        p.channel,
		Title:          title,
		InitialComment: comment,
	})
	if err != nil {
		return fmt.Errorf("upload report file: %w", err)
	}
	return nil
}
