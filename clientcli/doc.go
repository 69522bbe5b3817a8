// Package clientcli provides a client library for h2kv servers.
//
// It supports put, get, head, delete and list operations. Requests go out
// over HTTP/2, including cleartext HTTP/2 with prior knowledge for http://
// endpoints. The package includes profile-based configuration for managing
// connections to multiple servers.
//
// # Basic Usage
//
// Create a client and store a file:
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint: "http://localhost:5928",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Put(ctx, clientcli.PutOptions{
//		LocalPath:  "./readme.md",
//		RemotePath: "docs/readme.md",
//	})
//
// Fetch whichever representation the server negotiates:
//
//	result, body, err := client.Get(ctx, clientcli.GetOptions{
//		RemotePath: "docs/readme",
//		LocalPath:  "-",
//		Accept:     "text/markdown, text/html;q=0.5",
//	})
//
// # Profile Configuration
//
// Use profiles to manage multiple server configurations:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatPut(os.Stdout, results)
package clientcli
