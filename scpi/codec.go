package scpi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorQueueQuery reads and removes the oldest entry of the error queue.
const ErrorQueueQuery = "SYST:ERR?"

var errorReplyRe = regexp.MustCompile(`([+-]?\d+),"(.*?)"`)

// ParseErrorReply parses an error queue entry such as `-113,"Undefined header"`.
func ParseErrorReply(reply string) (code int, message string, err error) {
	m := errorReplyRe.FindStringSubmatch(reply)
	if m == nil {
		return 0, "", &FormatError{Kind: "error queue", Reply: reply}
	}

	code, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", &FormatError{Kind: "error queue", Reply: reply}
	}

	return code, m[2], nil
}

// FormatErrorReply renders an error queue entry the way instruments report
// it. message must not contain a double quote.
func FormatErrorReply(code int, message string) string {
	return fmt.Sprintf(`%d,"%s"`, code, message)
}

// Identity is the reply to *IDN?.
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// ParseIdentity splits an *IDN? reply into its four fields. The firmware
// field keeps any further commas.
func ParseIdentity(reply string) (Identity, error) {
	fields := strings.SplitN(strings.TrimSpace(reply), ",", 4)
	if len(fields) < 4 {
		return Identity{}, &FormatError{Kind: "identity", Reply: reply}
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return Identity{
		Manufacturer: fields[0],
		Model:        fields[1],
		Serial:       fields[2],
		Firmware:     fields[3],
	}, nil
}

func (id Identity) String() string {
	return strings.Join([]string{id.Manufacturer, id.Model, id.Serial, id.Firmware}, ",")
}
