package example

import (
	"igemm/internal/example/resnet"
	"igemm/internal/example/vgg"
)

var menu = [...]struct {
	name string
	call func() []byte
}{
	{"ResNet50", resnet.ResNet50},
	{"ResNet50Batch1", resnet.ResNet50Batch1},
	{"VGG16", vgg.VGG16},
}

func Names() []string {
	names := make([]string, len(menu))
	for i := range &menu {
		names[i] = menu[i].name
	}
	return names
}

func Generate(name string) []byte {
	for i := range &menu {
		if menu[i].name == name {
			return menu[i].call()
		}
	}
	return nil
}
