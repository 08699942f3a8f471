package cyberq

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/cyberq/internal/logging"
)

var (
	// document.mainForm.COOK_SET.value = "1500";
	htmlValuePattern = regexp.MustCompile(
		`^\s*document\.mainForm\.(?P<key>[A-Z1-3]+(_[A-Z]+)?)\.(selectedIndex|value) = (?P<value>[^;]+);$`)
	// document.mainForm._COOKHOLD.value = TempPICToHTML(1400,0);}
	htmlTempPattern = regexp.MustCompile(
		`^\s*document\.mainForm\._(?P<key>[A-Z1-3]+_SET|COOKHOLD)\.value = TempPICToHTML\((?P<value>\d+),0\);}?$`)
)

const htmlConversionCall = "TempHTMLToPIC"

// HTMLAssignment is one form-field assignment found in a controller page
type HTMLAssignment struct {
	Line  int
	Key   string
	Value string
}

// ScanHTML extracts the form-field assignments from a controller page.
// Lines are CRLF separated; lines that match neither assignment form are skipped.
func ScanHTML(body string) []HTMLAssignment {
	var out []HTMLAssignment
	for i, line := range strings.Split(body, "\r\n") {
		if m := htmlValuePattern.FindStringSubmatch(line); m != nil {
			value := m[htmlValuePattern.SubexpIndex("value")]
			if strings.HasPrefix(value, htmlConversionCall) {
				continue
			}
			out = append(out, HTMLAssignment{
				Line:  i + 1,
				Key:   m[htmlValuePattern.SubexpIndex("key")],
				Value: strings.Trim(value, `"`),
			})
			continue
		}
		if m := htmlTempPattern.FindStringSubmatch(line); m != nil {
			out = append(out, HTMLAssignment{
				Line:  i + 1,
				Key:   m[htmlTempPattern.SubexpIndex("key")],
				Value: m[htmlTempPattern.SubexpIndex("value")],
			})
		}
	}
	return out
}

// DecodeHTML feeds every assignment in body into store. Keys unknown to the
// registry are skipped. A value that fails to decode does not stop the scan;
// all such failures are returned together once the page has been read.
func DecodeHTML(store *Store, body string) error {
	var errs []error
	for _, a := range ScanHTML(body) {
		err := store.Accept(a.Key, a.Value)
		if err == nil {
			logging.Debug("Page value", zap.String("key", a.Key), zap.String("value", a.Value))
			continue
		}
		if errors.Is(err, ErrUnknownKey) {
			logging.Debug("Skipping unknown page field", zap.String("key", a.Key), zap.Int("line", a.Line))
			continue
		}
		logging.Warn("Failed to decode page value",
			zap.String("key", a.Key),
			zap.String("value", a.Value),
			zap.Int("line", a.Line),
			zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
