/*
rirc is a terminal IRC client.

Usage:

	rirc [options] <server>[:<port>]

The options are:

	-n	Nickname(s), comma separated, tried in order
	-u	Username
	-r	Real name
	-p	Server password
	-m	User mode string to set after registration
	-j	Channel to automatically join on connect
	-ssl	Use TLS to connect to the server
	-trust	Don't verify the server's TLS certificate

Once connected, rirc reads commands and chat text from standard input one
line at a time. Lines beginning with "/" are interpreted as client
commands:

	/connect host[:port] [pass]
	/disconnect [reason]
	/reconnect
	/join <chan>
	/part [chan] [reason]
	/quit [reason]
	/nick <nick>
	/msg <target> <text>
	/me <text>
	/topic [text]
	/names
	/mode <args...>
	/ignore <nick>
	/unignore <nick>

Any other line is sent as a PRIVMSG to the current channel.

rirc exits 0 on a clean /quit, and non-zero on a fatal startup error.
*/
package main
