//go:build sqlite_vec && cgo

package vectorstore

func openANNIfAvailable(dbPath string) (Store, error) {
	return OpenANNStore(dbPath)
}
