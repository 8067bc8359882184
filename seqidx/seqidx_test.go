// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package seqidx

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildFASTA(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "r.fa", ">r1\nACGT\n>r2\nTTTT\n")

	idx, err := Build(p)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatal(err)
	}
	want := "r1\t4\t4\nr2\t13\t4\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestBuildFASTQ(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "r.fq", "@r1\nACGT\n+\n!!!!\n")

	idx, err := Build(p)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatal(err)
	}
	want := "r1\t4\t4\t0\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "r.fa", ">a\nACGTACGT\n>b\nGGCC\n")

	built, err := Build(p)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := built.Save(&buf); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(&buf, p)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != built.Len() {
		t.Fatalf("len mismatch: %d vs %d", loaded.Len(), built.Len())
	}
	for _, id := range []string{"a", "b"} {
		wl, _ := built.SeqLen(id)
		gl, ok := loaded.SeqLen(id)
		if !ok || wl != gl {
			t.Errorf("%s: got %d,%v want %d", id, gl, ok, wl)
		}
	}
}

func TestGetSeq(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "r.fa", ">r1\nACGTACGTAC\n")

	idx, err := Build(p)
	if err != nil {
		t.Fatal(err)
	}
	sr, err := idx.NewSeqReader()
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()

	got, err := sr.Get("r1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ACGTACGTAC" {
		t.Errorf("got %q", got)
	}

	if _, err := sr.Get("nope"); errors.Cause(err) != ErrUnknownID {
		t.Errorf("want ErrUnknownID, got %v", err)
	}
}

func TestFASTQPhredAverage(t *testing.T) {
	dir := t.TempDir()
	// quality bytes '#' (35) and '5' (53) -> phreds 2 and 20, avg 11.
	p := writeTemp(t, dir, "r.fq", "@x\nAC\n+\n#5\n")

	idx, err := Build(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := idx.PhredAvg("x"); got != 11 {
		t.Errorf("phred avg = %v, want 11", got)
	}
}
