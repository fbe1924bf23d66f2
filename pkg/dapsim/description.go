package dapsim

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/juju/errors"

	"github.com/OpenTraceLab/OpenTraceADI/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"
)

// A target description lists debug ports, their APs and the debug
// components in AP memory:
//
//	# STM32F4 over SWD
//	dp default {
//	    dpidr 0x2ba01477
//	    ap 0 {
//	        base 0xe00ff000
//	        romtable 0xe00ff000 {
//	            jep106 0 0x20
//	            part 0x413
//	            entry 0xfff0f003
//	        }
//	        component 0xe000e000 { class 0xe jep106 4 0x3b part 0x00c }
//	        word 0xe0042000 = 0x10016413
//	    }
//	}
//
// An AP is a MEM-AP unless an idr setting says otherwise.
var descLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F_]+|[0-9][0-9_]*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}=]`},
})

type number uint64

func (n *number) Capture(values []string) error {
	v, err := strconv.ParseUint(strings.ReplaceAll(values[0], "_", ""), 0, 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type descFile struct {
	DebugPorts []*descDP `@@*`
}

type descDP struct {
	Multidrop bool          `"dp" ( @"multidrop"`
	TargetSel number        `       @Number | "default" ) "{"`
	Items     []*descDPItem `@@* "}"`
}

type descDPItem struct {
	AP      *descAP      `  @@`
	Setting *descSetting `| @@`
	Flag    string       `| @"powerfail"`
}

type descAP struct {
	Index number        `"ap" @Number "{"`
	Items []*descAPItem `@@* "}"`
}

type descAPItem struct {
	Component *descComponent `  @@`
	Word      *descWord      `| @@`
	Setting   *descSetting   `| @@`
	Flag      string         `| @( "only32" | "nohnonsec" | "fault" )`
}

type descWord struct {
	Addr  number `"word" @Number "="`
	Value number `@Number`
}

type descComponent struct {
	Kind  string               `@( "romtable" | "component" )`
	Base  number               `@Number "{"`
	Items []*descComponentItem `@@* "}"`
}

type descComponentItem struct {
	JEP106  *descJEP106  `  @@`
	Setting *descSetting `| @@`
	Flag    string       `| @"nojedec"`
}

type descJEP106 struct {
	CC number `"jep106" @Number`
	ID number `@Number`
}

type descSetting struct {
	Key   string `@( "dpidr" | "targetid" | "idr" | "base2" | "base" | "csw" | "part" | "class" | "revision" | "entry" )`
	Value number `@Number`
}

var descParser = participle.MustBuild[descFile](
	participle.Lexer(descLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.UseLookahead(2),
)

// ParseDescription builds a target from a description read from r. name is
// used in error messages.
func ParseDescription(name string, r io.Reader) (*Target, error) {
	file, err := descParser.Parse(name, r)
	if err != nil {
		return nil, errors.Annotatef(err, "parse target description %s", name)
	}
	return file.build()
}

// ParseDescriptionString is ParseDescription on a string.
func ParseDescriptionString(name, text string) (*Target, error) {
	return ParseDescription(name, strings.NewReader(text))
}

// LoadDescription parses the description file at path.
func LoadDescription(path string) (*Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ParseDescription(path, f)
}

func (f *descFile) build() (*Target, error) {
	if len(f.DebugPorts) == 0 {
		return nil, errors.NotValidf("target description without debug ports")
	}
	t := New()
	for _, d := range f.DebugPorts {
		addr := dap.DefaultDP
		if d.Multidrop {
			addr = dap.MultidropDP(uint32(d.TargetSel))
		}
		if t.DP(addr) != nil {
			return nil, errors.AlreadyExistsf("debug port %s", addr)
		}
		dp := t.AddDP(addr, 0)
		for _, item := range d.Items {
			if err := item.apply(dp); err != nil {
				return nil, errors.Annotatef(err, "debug port %s", addr)
			}
		}
	}
	return t, nil
}

func (item *descDPItem) apply(dp *DebugPort) error {
	switch {
	case item.AP != nil:
		if int(item.AP.Index) != len(dp.aps) {
			return errors.NotValidf("AP %d listed out of order", item.AP.Index)
		}
		ap := NewMemAP(0)
		for _, apItem := range item.AP.Items {
			if err := apItem.apply(dp, ap, uint8(item.AP.Index)); err != nil {
				return errors.Annotatef(err, "AP %d", item.AP.Index)
			}
		}
		dp.AddAP(ap)
	case item.Setting != nil:
		switch item.Setting.Key {
		case "dpidr":
			dp.DPIDR = uint32(item.Setting.Value)
		case "targetid":
			dp.TargetID = uint32(item.Setting.Value)
		default:
			return errors.NotValidf("setting %q on a debug port", item.Setting.Key)
		}
	case item.Flag == "powerfail":
		dp.PowerUpFails = true
	}
	return nil
}

func (item *descAPItem) apply(dp *DebugPort, ap *AP, index uint8) error {
	switch {
	case item.Component != nil:
		return item.Component.apply(ap)
	case item.Word != nil:
		ap.SetWord(uint64(item.Word.Addr), uint32(item.Word.Value))
	case item.Setting != nil:
		value := item.Setting.Value
		switch item.Setting.Key {
		case "idr":
			ap.IDR = uint32(value)
		case "base":
			ap.Base = uint32(value)&0xFFFFF000 | 0x3
		case "base2":
			ap.Base2 = uint32(value)
		case "csw":
			ap.CSW = uint32(value)
		default:
			return errors.NotValidf("setting %q on an AP", item.Setting.Key)
		}
	case item.Flag == "only32":
		ap.Only32Bit = true
	case item.Flag == "nohnonsec":
		ap.NoHNONSEC = true
	case item.Flag == "fault":
		dp.SetFaulting(index, true)
	}
	return nil
}

func (c *descComponent) apply(ap *AP) error {
	comp := Component{Base: uint64(c.Base), Class: ClassCoreSight}
	if c.Kind == "romtable" {
		comp.Class = ClassROMTable
	}
	for _, item := range c.Items {
		switch {
		case item.JEP106 != nil:
			comp.Designer = idcode.NewJEP106Code(uint8(item.JEP106.CC), uint8(item.JEP106.ID))
		case item.Flag == "nojedec":
			comp.NoJEDEC = true
		case item.Setting != nil:
			value := item.Setting.Value
			switch item.Setting.Key {
			case "part":
				comp.Part = uint16(value)
			case "revision":
				comp.Revision = uint8(value)
			case "class":
				if c.Kind == "romtable" {
					return errors.NotValidf("class setting on a romtable")
				}
				comp.Class = uint8(value)
			case "entry":
				if c.Kind != "romtable" {
					return errors.NotValidf("entry outside a romtable")
				}
				comp.Entries = append(comp.Entries, uint32(value))
			default:
				return errors.NotValidf("setting %q on a component", item.Setting.Key)
			}
		}
	}
	ap.AddComponent(comp)
	return nil
}

// DefaultDescription describes an STM32F407 behind a single SWD debug port.
const DefaultDescription = `
# STM32F407, Cortex-M4 behind an AHB-AP
dp default {
    dpidr 0x2ba01477
    ap 0 {
        base 0xe00ff000
        romtable 0xe00ff000 {
            jep106 0 0x20
            part 0x413
            entry 0xfff0f003
            entry 0xfff02003
        }
        component 0xe000e000 { class 0xe jep106 4 0x3b part 0x00c }
        component 0xe0001000 { class 0xe jep106 4 0x3b part 0x002 }
        word 0xe0042000 = 0x10076413
    }
}
`
