package usecase

import (
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/semmidev/dbstash/internal/config"
)

const (
	ProfileHourly    = "hourly"
	ProfileDaily     = "daily"
	ProfileTimestamp = "timestamp"
)

// KeyScheme derives artifact file names and remote keys from the clock.
// The same instant always yields the same key, so a repeated run inside one
// slot overwrites the previous object.
type KeyScheme struct {
	Profile        string
	BaseName       string
	FilenamePrefix string
	// Filename replaces BaseName and the stamp when set.
	Filename string
	Location *time.Location
}

func NewKeyScheme(cfg *config.Config) KeyScheme {
	return KeyScheme{
		Profile:        cfg.Backup.Profile,
		BaseName:       cfg.Backup.BaseName,
		FilenamePrefix: cfg.Backup.FilenamePrefix,
		Filename:       cfg.Backup.Filename,
		Location:       cfg.Location(),
	}
}

func (k KeyScheme) local(t time.Time) time.Time {
	if k.Location == nil {
		return t
	}
	return t.In(k.Location)
}

// FileName is the base name of the artifact, ext included.
func (k KeyScheme) FileName(t time.Time, ext string) string {
	t = k.local(t)
	if k.Filename != "" {
		return k.FilenamePrefix + k.Filename + ext
	}
	return k.FilenamePrefix + k.BaseName + k.stamp(t) + ext
}

// RemoteKey is FileName placed under the profile's folder, if any.
func (k KeyScheme) RemoteKey(t time.Time, ext string) string {
	name := k.FileName(t, ext)
	if folder := k.folder(k.local(t)); folder != "" {
		return path.Join(folder, name)
	}
	return name
}

func (k KeyScheme) stamp(t time.Time) string {
	switch k.Profile {
	case ProfileDaily:
		return t.Format("-2006-01-02")
	case ProfileTimestamp:
		return t.Format("-20060102_150405")
	default:
		return fmt.Sprintf("-%02d-%02d00", t.Day(), t.Hour())
	}
}

func (k KeyScheme) folder(t time.Time) string {
	switch k.Profile {
	case ProfileDaily, ProfileTimestamp:
		return ""
	default:
		return fmt.Sprintf("%02d", t.Day())
	}
}

// Matches reports whether key could have been produced by this scheme with
// the given extension chain, at any time.
func (k KeyScheme) Matches(key, ext string) bool {
	return k.pattern(ext).MatchString(key)
}

func (k KeyScheme) pattern(ext string) *regexp.Regexp {
	var stamp, folder string
	switch k.Profile {
	case ProfileDaily:
		stamp = `-\d{4}-\d{2}-\d{2}`
	case ProfileTimestamp:
		stamp = `-\d{8}_\d{6}`
	default:
		stamp = `-\d{2}-\d{2}00`
		folder = `\d{2}/`
	}

	name := regexp.QuoteMeta(k.BaseName) + stamp
	if k.Filename != "" {
		name = regexp.QuoteMeta(k.Filename)
	}
	return regexp.MustCompile("^" + folder + regexp.QuoteMeta(k.FilenamePrefix) + name + regexp.QuoteMeta(ext) + "$")
}
