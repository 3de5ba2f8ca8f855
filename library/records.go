package library

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// encodeBook renders the inventory line author,title,serial. Fields holding a
// comma or quote are quoted with inner quotes doubled.
func encodeBook(b Book) string {
	return escapeField(b.Author) + "," + escapeField(b.Title) + "," + strconv.Itoa(b.Serial)
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, ",\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// decodeBook parses one inventory line. Both author,title,serial and the
// legacy author,title,serial,checkedOut forms are accepted; the legacy flag
// is validated and then discarded.
func decodeBook(line string) (Book, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return Book{}, errors.Wrap(err, "parse fields")
	}
	if len(fields) != 3 && len(fields) != 4 {
		return Book{}, errors.Errorf("want 3 or 4 fields, got %d", len(fields))
	}
	serial, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return Book{}, errors.Errorf("serial %q is not a number", fields[2])
	}
	if len(fields) == 4 {
		if _, err := strconv.ParseBool(strings.TrimSpace(fields[3])); err != nil {
			return Book{}, errors.Errorf("checked-out flag %q is not a boolean", fields[3])
		}
	}
	return Book{Author: fields[0], Title: fields[1], Serial: serial}, nil
}

// encodeAccount renders the account line id,name,password,role. There is no
// escaping; validateAccountField keeps delimiters out.
func encodeAccount(a Account) string {
	return strconv.Itoa(a.ID) + "," + a.Name + "," + a.Password + "," + a.Role
}

func decodeAccount(line string) (Account, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return Account{}, errors.Errorf("want 4 fields, got %d", len(fields))
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Account{}, errors.Errorf("id %q is not a number", fields[0])
	}
	return Account{ID: id, Name: fields[1], Password: fields[2], Role: fields[3]}, nil
}

func validateAccountField(name, value string) error {
	if strings.ContainsAny(value, ",\r\n") {
		return errors.Errorf("%s must not contain commas or line breaks", name)
	}
	return nil
}

// validateBook rejects values that would split the one-record-per-line
// inventory file.
func validateBook(b Book) error {
	if strings.ContainsAny(b.Author, "\r\n") {
		return errors.New("author must not contain line breaks")
	}
	if strings.ContainsAny(b.Title, "\r\n") {
		return errors.New("title must not contain line breaks")
	}
	return nil
}
