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

// Command tbf-hold writes the single-byte rendezvous token to a FIFO and
// exits; drivers use it to acknowledge a pipe stage from shell scripts
// without a full client implementation: tbf-hold fifo_path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenwei356/targetedbf/internal/clilog"
)

func init() {
	clilog.Init()
}

var rootCmd = &cobra.Command{
	Use:   "tbf-hold fifo_path",
	Short: "Write the rendezvous token \"1\" to fifo_path and exit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.OpenFile(args[0], os.O_WRONLY, 0)
		clilog.CheckError(err)
		_, werr := f.WriteString("1")
		cerr := f.Close()
		clilog.CheckError(werr)
		clilog.CheckError(cerr)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
