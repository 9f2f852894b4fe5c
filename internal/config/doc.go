// Package config provides configuration management for autctl.
//
// Configuration is loaded from multiple sources and merged in a specific
// order, with later sources overriding earlier ones:
//
//  1. Default configuration (embedded in binary)
//  2. User configuration (~/.config/autctl/config.yaml)
//  3. Project configuration (./.autctl/config.yaml)
//  4. An explicit file passed with --config
//  5. Environment overrides (AUT_WORKSPACE_PATH, SWT_BOT_AGENT_BUNDLE_PATH,
//     AUT_EXECUTABLE)
//
// Each file layer is decoded on top of the previous result, so a file only
// needs to mention the keys it changes:
//
//	agent:
//	  port: 9090
//	  bundlePath: /opt/testeditor/plugins/org.testeditor.agent.swtbot_1.0.jar
//	application:
//	  executable: /opt/aut/aut
//	workspace:
//	  path: /home/me/.testeditor_aut
//	  templateArchive: /opt/testeditor/DemoWebTests.zip
//	timing:
//	  readinessInterval: 200ms
package config
