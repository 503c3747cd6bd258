package comm_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/comm"
)

var _ = Describe("Communicator", func() {
	var (
		cmdPath   string
		replyPath string
		c         *comm.Communicator
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		cmdPath = filepath.Join(dir, "cmd")
		replyPath = filepath.Join(dir, "reply")
		var err error
		c, err = comm.New(cmdPath, replyPath)
		Expect(err).NotTo(HaveOccurred())
	})

	readFile := func(path string) string {
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	It("should stamp both files ready on creation", func() {
		Expect(readFile(cmdPath)).To(HavePrefix("ready for command"))
		Expect(readFile(replyPath)).To(HavePrefix("ready for command"))
	})

	It("should dispatch a command by prefix and pass the full line", func() {
		var gotLine string
		c.RegisterCommand("print", func(w io.Writer, line string) {
			gotLine = line
			fmt.Fprintf(w, "printed\n")
		})

		Expect(os.WriteFile(cmdPath, []byte("print with args\n"), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())

		Expect(gotLine).To(Equal("print with args"))
		reply := readFile(replyPath)
		Expect(reply).To(ContainSubstring("start handling command 'print with args'"))
		Expect(reply).To(ContainSubstring("printed"))
		Expect(reply).To(ContainSubstring("done handling command 'print with args'"))
	})

	It("should answer unknown commands", func() {
		Expect(os.WriteFile(cmdPath, []byte("frobnicate\n"), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())
		Expect(readFile(replyPath)).To(ContainSubstring("No such command!"))
	})

	It("should stop reading at the ready stamp", func() {
		called := 0
		c.RegisterCommand("tick", func(io.Writer, string) { called++ })

		content := "tick\nready for command [old stamp]\ntick\n"
		Expect(os.WriteFile(cmdPath, []byte(content), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())
		Expect(called).To(Equal(1))
	})

	It("should reset the command file after processing", func() {
		Expect(os.WriteFile(cmdPath, []byte("help\n"), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())
		Expect(readFile(cmdPath)).To(HavePrefix("ready for command"))
	})

	It("should list registered commands under help", func() {
		c.RegisterCommand("print best", func(io.Writer, string) {})
		Expect(os.WriteFile(cmdPath, []byte("help\n"), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())
		reply := readFile(replyPath)
		Expect(reply).To(ContainSubstring("Available commands:"))
		Expect(reply).To(ContainSubstring("help"))
		Expect(reply).To(ContainSubstring("print best"))
	})

	It("should try commands in registration order", func() {
		var hit []string
		c.RegisterCommand("print", func(io.Writer, string) { hit = append(hit, "print") })
		c.RegisterCommand("print best", func(io.Writer, string) { hit = append(hit, "print best") })

		Expect(os.WriteFile(cmdPath, []byte("print best\n"), 0644)).To(Succeed())
		Expect(c.CheckCommands()).To(Succeed())
		// "print" was registered first and prefixes the line
		Expect(strings.Join(hit, ",")).To(Equal("print"))
	})
})
