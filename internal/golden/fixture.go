package golden

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFixtureExt is the file extension used for fixtures by NewStore.
const DefaultFixtureExt = ".result"

// Store reads and writes named golden fixtures in a directory. A fixture is a
// text file of newline-terminated lines.
type Store struct {
	Dir string
	Ext string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Ext: DefaultFixtureExt}
}

// Path returns the file path of the fixture with the supplied name.
func (st *Store) Path(name string) string {
	return filepath.Join(st.Dir, name+st.Ext)
}

// Exists returns true if the named fixture exists.
func (st *Store) Exists(name string) bool {
	_, err := os.Stat(st.Path(name))
	return err == nil
}

// Read returns the lines of the named fixture, without line terminators. CRLF
// line endings are treated the same as LF. If the fixture does not exist, the
// returned error satisfies errors.Is(err, fs.ErrNotExist).
func (st *Store) Read(name string) ([]string, error) {
	contents, err := os.ReadFile(st.Path(name))
	if err != nil {
		return nil, err
	}
	return SplitLines(string(contents)), nil
}

// Write replaces the named fixture with lines. The fixture is written to a
// temporary file first and then renamed into place, so a reader never sees a
// partial fixture.
func (st *Store) Write(name string, lines []string) (err error) {
	if err := os.MkdirAll(st.Dir, 0777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(st.Dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.WriteString(JoinLines(lines)); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0666); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), st.Path(name))
}

// SplitLines splits text into lines, dropping line terminators. A trailing
// newline does not produce a final empty line.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return []string{}
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// JoinLines is the inverse of SplitLines: each line gets a newline terminator.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
