package others

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/atomblob/cmd/core"
	"github.com/projecteru2/atomblob/codec"
	"github.com/projecteru2/atomblob/version"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Codecs(_ *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}
	def := conf.Codec
	if def == "" {
		def = codec.Default().Name()
	}
	for _, name := range codec.Names() {
		mark := " "
		if strings.EqualFold(name, def) {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, name)
	}
	return nil
}

func (h Handler) Version(_ *cobra.Command, _ []string) error {
	fmt.Print(version.String())
	return nil
}
